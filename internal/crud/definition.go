package crud

import (
	"context"
	"encoding/json"

	"github.com/udistrital/microservicios_crud/internal/resolver"
	"github.com/udistrital/microservicios_crud/internal/store"
	"github.com/udistrital/microservicios_crud/internal/validation"
)

// FilterKind indica cómo interpretar el valor de un filtro de la query string.
type FilterKind int

const (
	Int FilterKind = iota
	Text
)

// Filter expone una columna como parámetro de listado. Param es el nombre en la URL.
type Filter struct {
	Param  string
	Column string
	Op     string
	Kind   FilterKind
}

// Eq es el filtro de igualdad más común: el parámetro se llama como la columna.
func Eq(column string, kind FilterKind) Filter {
	return Filter{Param: column, Column: column, Op: store.OpEq, Kind: kind}
}

// Range agrega <column>_min y <column>_max.
func Range(column string) []Filter {
	return []Filter{
		{Param: column + "_min", Column: column, Op: store.OpGte, Kind: Int},
		{Param: column + "_max", Column: column, Op: store.OpLte, Kind: Int},
	}
}

// Parent publica GET .../<Route>/{id} filtrando por Column.
type Parent struct {
	Route  string
	Column string
}

// Child es una tabla del mismo servicio que bloquea el borrado mientras tenga filas activas.
type Child struct {
	Table  string
	Column string
	Label  string
}

// RemoteChild es un recurso de otro servicio que referencia a éste por Column.
type RemoteChild struct {
	Ref    resolver.Ref
	Column string
	Label  string
}

// Enrichment embebe en cada registro el recurso remoto referenciado.
type Enrichment[T any] struct {
	Ref resolver.Ref
	// ID devuelve 0 cuando el registro no tiene referencia.
	ID  func(*T) int64
	Set func(*T, json.RawMessage)
}

// Action es una operación adicional sobre un registro: GET .../{id}/<Name>.
type Action struct {
	Name string
	Fn   func(ctx context.Context, id int64) (interface{}, error)
}

// Definition describe un recurso completo.
type Definition[T any] struct {
	Resource       string
	Label          string
	Rules          []validation.Rule
	Filters        []Filter
	Parents        []Parent
	Children       []Child
	RemoteChildren []RemoteChild
	Enrichments    []Enrichment[T]
	Actions        []Action

	// Immutable rechaza PUT y DELETE con 403 sin tocar el almacenamiento.
	Immutable    bool
	BeforeCreate func(ctx context.Context, rec *T) error
	BeforeUpdate func(ctx context.Context, current, next *T) error
}

// Ptr64 convierte un id opcional a la convención de Enrichment.ID.
func Ptr64(id *int64) int64 {
	if id == nil {
		return 0
	}
	return *id
}
