// Package store define el puerto de persistencia de los recursos CRUD: cada tabla
// tiene borrado lógico (activo=false) y un contador de versión.
package store

import (
	"context"
	"errors"
	"reflect"
	"strings"

	"github.com/jmoiron/sqlx/reflectx"

	"github.com/udistrital/microservicios_crud/models"
)

var (
	// ErrNotFound indica que la fila no existe o está marcada como eliminada.
	ErrNotFound = errors.New("registro no encontrado")
	// ErrConflict indica una violación de unicidad detectada por el motor.
	ErrConflict = errors.New("conflicto de unicidad")
	// ErrVersionMismatch indica que la versión enviada no coincide con la almacenada.
	ErrVersionMismatch = errors.New("la versión del registro cambió")
)

// Model restringe los tipos persistibles a punteros de structs que embeben models.Auditoria.
type Model[T any] interface {
	*T
	Meta() *models.Auditoria
}

// Table describe una tabla. Las columnas vienen siempre de definiciones estáticas,
// nunca de la entrada del cliente.
type Table struct {
	Name    string
	Columns []string
	Search  []string
	OrderBy string
}

// Order devuelve la columna de orden por defecto.
func (t Table) Order() string {
	if t.OrderBy == "" {
		return "id"
	}
	return t.OrderBy
}

// Operadores de filtro soportados.
const (
	OpEq  = "="
	OpGte = ">="
	OpLte = "<="
	OpIn  = "in"
)

type Filter struct {
	Column string
	Op     string
	Value  interface{}
}

// Query describe un listado. PerPage == 0 devuelve todas las filas.
type Query struct {
	Filters []Filter
	Search  string
	Page    int
	PerPage int
	Limit   int
}

// Offset calcula el desplazamiento de la página solicitada.
func (q Query) Offset() int {
	if q.PerPage <= 0 || q.Page <= 1 {
		return 0
	}
	return (q.Page - 1) * q.PerPage
}

// Repository es el acceso a una tabla concreta.
type Repository[T any] interface {
	List(ctx context.Context, q Query) ([]T, int64, error)
	// Get ignora filas eliminadas.
	Get(ctx context.Context, id int64) (*T, error)
	// GetAny incluye filas eliminadas.
	GetAny(ctx context.Context, id int64) (*T, error)
	// Insert asigna id, version=1, activo=true y created_by=actor.
	Insert(ctx context.Context, rec *T, actor *int64) error
	// Update incrementa la versión en la misma sentencia. Con expectedVersion > 0
	// sólo actualiza si la versión almacenada coincide.
	Update(ctx context.Context, rec *T, actor *int64, expectedVersion int64) error
	SoftDelete(ctx context.Context, id int64, actor *int64) error
	Exists(ctx context.Context, id int64) (bool, error)
	// Taken informa si otra fila activa ya usa value en column.
	Taken(ctx context.Context, column string, value interface{}, excludeID int64) (bool, error)
}

// Database agrupa las consultas entre tablas de un mismo servicio.
type Database interface {
	CountActive(ctx context.Context, table, column string, id int64) (int64, error)
	ExistsActive(ctx context.Context, table string, id int64) (bool, error)
}

var mapper = reflectx.NewMapperFunc("db", strings.ToLower)

// ColumnValue lee la columna name de rec (struct o puntero a struct) siguiendo las
// etiquetas db. Un puntero nulo se devuelve como nil; nunca se reserva memoria en rec.
func ColumnValue(rec interface{}, name string) (interface{}, bool) {
	v := reflect.Indirect(reflect.ValueOf(rec))
	if v.Kind() != reflect.Struct {
		return nil, false
	}
	fi := mapper.TypeMap(v.Type()).GetByPath(name)
	if fi == nil {
		return nil, false
	}
	f := v.FieldByIndex(fi.Index)
	if f.Kind() == reflect.Ptr {
		if f.IsNil() {
			return nil, true
		}
		f = f.Elem()
	}
	return f.Interface(), true
}
