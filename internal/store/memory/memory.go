// Package memory implementa el puerto store en memoria. Es seguro para uso
// concurrente y se usa en pruebas y en desarrollo local sin base de datos.
package memory

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/udistrital/microservicios_crud/internal/store"
)

// DB es una base de datos en memoria: un conjunto de tablas de un mismo servicio.
type DB struct {
	mu     sync.RWMutex
	tables map[string]*table
}

type table struct {
	nextID int64
	rows   map[int64]interface{}
}

var _ store.Database = (*DB)(nil)

// New crea una base vacía.
func New() *DB {
	return &DB{tables: make(map[string]*table)}
}

func (db *DB) tableLocked(name string) *table {
	t, ok := db.tables[name]
	if !ok {
		t = &table{nextID: 1, rows: make(map[int64]interface{})}
		db.tables[name] = t
	}
	return t
}

func (db *DB) column(row interface{}, name string) (interface{}, bool) {
	return store.ColumnValue(row, name)
}

func (db *DB) active(row interface{}) bool {
	v, _ := db.column(row, "activo")
	b, _ := v.(bool)
	return b
}

// CountActive cuenta filas activas de table cuya columna column vale id.
func (db *DB) CountActive(_ context.Context, tableName, column string, id int64) (int64, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	t, ok := db.tables[tableName]
	if !ok {
		return 0, nil
	}
	var n int64
	for _, row := range t.rows {
		if !db.active(row) {
			continue
		}
		v, ok := db.column(row, column)
		if !ok {
			return 0, fmt.Errorf("columna %s desconocida en %s", column, tableName)
		}
		if cmp, ok := compare(v, id); ok && cmp == 0 {
			n++
		}
	}
	return n, nil
}

// ExistsActive informa si la fila id existe y no está eliminada.
func (db *DB) ExistsActive(_ context.Context, tableName string, id int64) (bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	t, ok := db.tables[tableName]
	if !ok {
		return false, nil
	}
	row, ok := t.rows[id]
	return ok && db.active(row), nil
}

// Repository es el acceso en memoria a una tabla.
type Repository[T any, PT store.Model[T]] struct {
	db    *DB
	table store.Table
}

// NewRepository crea un repositorio para table dentro de db.
func NewRepository[T any, PT store.Model[T]](db *DB, table store.Table) *Repository[T, PT] {
	return &Repository[T, PT]{db: db, table: table}
}

func (r *Repository[T, PT]) rows() *table {
	return r.db.tableLocked(r.table.Name)
}

func (r *Repository[T, PT]) List(_ context.Context, q store.Query) ([]T, int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	matched := make([]T, 0)
	for _, row := range r.rows().rows {
		if !r.db.active(row) {
			continue
		}
		ok, err := r.matches(row, q)
		if err != nil {
			return nil, 0, err
		}
		if ok {
			matched = append(matched, row.(T))
		}
	}

	order := r.table.Order()
	sort.SliceStable(matched, func(i, j int) bool {
		a, _ := r.db.column(matched[i], order)
		b, _ := r.db.column(matched[j], order)
		if cmp, ok := compare(a, b); ok && cmp != 0 {
			return cmp < 0
		}
		return PT(&matched[i]).Meta().Id < PT(&matched[j]).Meta().Id
	})

	total := int64(len(matched))
	if q.PerPage > 0 {
		start := q.Offset()
		if start > len(matched) {
			start = len(matched)
		}
		end := start + q.PerPage
		if end > len(matched) {
			end = len(matched)
		}
		matched = matched[start:end]
	} else if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	return matched, total, nil
}

func (r *Repository[T, PT]) matches(row interface{}, q store.Query) (bool, error) {
	for _, f := range q.Filters {
		v, ok := r.db.column(row, f.Column)
		if !ok {
			return false, fmt.Errorf("columna %s desconocida en %s", f.Column, r.table.Name)
		}
		if v == nil {
			return false, nil
		}
		switch f.Op {
		case store.OpIn:
			found := false
			for _, candidate := range toSlice(f.Value) {
				if cmp, ok := compare(v, candidate); ok && cmp == 0 {
					found = true
					break
				}
			}
			if !found {
				return false, nil
			}
		default:
			cmp, ok := compare(v, f.Value)
			if !ok {
				return false, nil
			}
			switch f.Op {
			case store.OpEq:
				if cmp != 0 {
					return false, nil
				}
			case store.OpGte:
				if cmp < 0 {
					return false, nil
				}
			case store.OpLte:
				if cmp > 0 {
					return false, nil
				}
			default:
				return false, fmt.Errorf("operador %s no soportado", f.Op)
			}
		}
	}

	if term := strings.ToLower(strings.TrimSpace(q.Search)); term != "" {
		for _, col := range r.table.Search {
			v, _ := r.db.column(row, col)
			if s, ok := v.(string); ok && strings.Contains(strings.ToLower(s), term) {
				return true, nil
			}
		}
		return false, nil
	}
	return true, nil
}

func (r *Repository[T, PT]) Get(ctx context.Context, id int64) (*T, error) {
	rec, err := r.GetAny(ctx, id)
	if err != nil {
		return nil, err
	}
	if !PT(rec).Meta().Activo {
		return nil, store.ErrNotFound
	}
	return rec, nil
}

func (r *Repository[T, PT]) GetAny(_ context.Context, id int64) (*T, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	row, ok := r.rows().rows[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	rec := row.(T)
	return &rec, nil
}

func (r *Repository[T, PT]) Insert(_ context.Context, rec *T, actor *int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	t := r.rows()
	now := time.Now().UTC()
	meta := PT(rec).Meta()
	meta.Id = t.nextID
	meta.Activo = true
	meta.Version = 1
	meta.CreatedBy = actor
	meta.UpdatedBy = actor
	meta.DeletedBy = nil
	meta.CreatedAt = now
	meta.UpdatedAt = now
	meta.DeletedAt = nil
	t.nextID++

	row := *rec
	stripTransient(reflect.ValueOf(&row).Elem())
	t.rows[meta.Id] = row
	return nil
}

func (r *Repository[T, PT]) Update(_ context.Context, rec *T, actor *int64, expectedVersion int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	t := r.rows()
	meta := PT(rec).Meta()
	stored, ok := t.rows[meta.Id]
	if !ok {
		return store.ErrNotFound
	}
	current := stored.(T)
	prev := PT(&current).Meta()
	if !prev.Activo {
		return store.ErrNotFound
	}
	if expectedVersion > 0 && prev.Version != expectedVersion {
		return store.ErrVersionMismatch
	}

	meta.Activo = true
	meta.Version = prev.Version + 1
	meta.CreatedBy = prev.CreatedBy
	meta.CreatedAt = prev.CreatedAt
	meta.UpdatedBy = actor
	meta.UpdatedAt = time.Now().UTC()
	meta.DeletedBy = nil
	meta.DeletedAt = nil

	row := *rec
	stripTransient(reflect.ValueOf(&row).Elem())
	t.rows[meta.Id] = row
	return nil
}

func (r *Repository[T, PT]) SoftDelete(_ context.Context, id int64, actor *int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	t := r.rows()
	stored, ok := t.rows[id]
	if !ok {
		return store.ErrNotFound
	}
	row := stored.(T)
	meta := PT(&row).Meta()
	if !meta.Activo {
		return store.ErrNotFound
	}
	now := time.Now().UTC()
	meta.DeletedBy = actor
	meta.DeletedAt = &now
	meta.UpdatedAt = now
	meta.Activo = false
	t.rows[id] = row
	return nil
}

func (r *Repository[T, PT]) Exists(ctx context.Context, id int64) (bool, error) {
	return r.db.ExistsActive(ctx, r.table.Name, id)
}

func (r *Repository[T, PT]) Taken(_ context.Context, column string, value interface{}, excludeID int64) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for id, row := range r.rows().rows {
		if id == excludeID || !r.db.active(row) {
			continue
		}
		v, ok := r.db.column(row, column)
		if !ok {
			return false, fmt.Errorf("columna %s desconocida en %s", column, r.table.Name)
		}
		if cmp, ok := compare(v, value); ok && cmp == 0 {
			return true, nil
		}
	}
	return false, nil
}

// stripTransient limpia los campos db:"-" (datos embebidos de otros servicios).
func stripTransient(v reflect.Value) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).Tag.Get("db") == "-" && v.Field(i).CanSet() {
			v.Field(i).Set(reflect.Zero(t.Field(i).Type))
		}
	}
}

func toSlice(v interface{}) []interface{} {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return []interface{}{v}
	}
	out := make([]interface{}, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out = append(out, rv.Index(i).Interface())
	}
	return out
}

// compare ordena dos valores escalares. ok es false si no son comparables.
func compare(a, b interface{}) (int, bool) {
	if a == nil || b == nil {
		return 0, false
	}
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		}
		return 0, true
	}
	if ta, ok := toTime(a); ok {
		tb, ok := toTime(b)
		if !ok {
			return 0, false
		}
		return ta.Compare(tb), true
	}
	sa, ok := a.(string)
	if !ok {
		return 0, false
	}
	sb := fmt.Sprint(b)
	return strings.Compare(sa, sb), true
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func toTime(v interface{}) (time.Time, bool) {
	if t, ok := v.(interface{ UTC() time.Time }); ok {
		return t.UTC(), true
	}
	return time.Time{}, false
}
