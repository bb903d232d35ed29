// Package modules arma los recursos de cada servicio: catálogos, organización,
// personal y archivos.
package modules

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/udistrital/microservicios_crud/internal/crud"
	"github.com/udistrital/microservicios_crud/internal/resolver"
	"github.com/udistrital/microservicios_crud/internal/store"
	"github.com/udistrital/microservicios_crud/internal/store/memory"
	"github.com/udistrital/microservicios_crud/internal/store/postgres"
	"github.com/udistrital/microservicios_crud/internal/validation"
)

// Nombres de los servicios. También son el prefijo de sus rutas y su esquema.
const (
	Catalogos    = "catalogos"
	Organizacion = "organizacion"
	Personal     = "personal"
	Archivos     = "archivos"
)

// Names lista todos los servicios en orden de dependencia.
var Names = []string{Catalogos, Organizacion, Personal, Archivos}

// Module es un servicio listo para publicar.
type Module struct {
	Name      string
	Resources []crud.Handler
}

// Backend es el almacenamiento exclusivo de un servicio.
type Backend struct {
	mem *memory.DB
	pg  *postgres.DB
}

// MemoryBackend crea un almacenamiento en memoria aislado.
func MemoryBackend() Backend {
	return Backend{mem: memory.New()}
}

// PostgresBackend usa el esquema schema de db.
func PostgresBackend(db *sqlx.DB, schema string) Backend {
	return Backend{pg: postgres.New(db, schema)}
}

// Database devuelve las consultas entre tablas del servicio.
func (b Backend) Database() store.Database {
	if b.pg != nil {
		return b.pg
	}
	return b.mem
}

func repository[T any, PT store.Model[T]](b Backend, table store.Table) store.Repository[T] {
	if b.pg != nil {
		return postgres.NewRepository[T, PT](b.pg, table)
	}
	return memory.NewRepository[T, PT](b.mem, table)
}

// Env agrupa las dependencias con las que se arma un servicio.
type Env struct {
	Backend   Backend
	Resolver  *resolver.Resolver
	Validator *validation.Validator
}

func (e Env) deps() crud.Deps {
	deps := crud.Deps{DB: e.Backend.Database(), Validator: e.Validator}
	if e.Resolver != nil {
		deps.Remote = e.Resolver
	}
	return deps
}

func (e Env) remote() validation.RemoteChecker {
	if e.Resolver == nil {
		return unavailable{}
	}
	return e.Resolver
}

// Build arma el servicio name.
func Build(name string, env Env) (Module, error) {
	if env.Validator == nil {
		env.Validator = validation.New()
	}
	switch name {
	case Catalogos:
		return newCatalogos(env), nil
	case Organizacion:
		return newOrganizacion(env), nil
	case Personal:
		return newPersonal(env), nil
	case Archivos:
		return newArchivos(env), nil
	default:
		return Module{}, fmt.Errorf("módulo desconocido: %s", name)
	}
}
