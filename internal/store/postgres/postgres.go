// Package postgres implementa el puerto store sobre PostgreSQL con sqlx y lib/pq.
// Cada servicio usa su propio esquema.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/udistrital/microservicios_crud/internal/store"
)

// uniqueViolation es el SQLSTATE de PostgreSQL para violaciones de unicidad.
const uniqueViolation = "23505"

var auditColumns = []string{
	"id", "activo", "version", "created_by", "updated_by", "deleted_by",
	"created_at", "updated_at", "deleted_at",
}

// Open abre un pool de conexiones con el driver de lib/pq.
func Open(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// DB resuelve consultas entre tablas dentro de un esquema.
type DB struct {
	db     *sqlx.DB
	schema string
}

var _ store.Database = (*DB)(nil)

// New crea el acceso a las tablas de schema.
func New(db *sqlx.DB, schema string) *DB {
	return &DB{db: db, schema: schema}
}

func (d *DB) qualify(table string) string {
	if d.schema == "" {
		return table
	}
	return d.schema + "." + table
}

func (d *DB) CountActive(ctx context.Context, table, column string, id int64) (int64, error) {
	var n int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = $1 AND activo = true", d.qualify(table), column)
	if err := d.db.GetContext(ctx, &n, query, id); err != nil {
		return 0, err
	}
	return n, nil
}

func (d *DB) ExistsActive(ctx context.Context, table string, id int64) (bool, error) {
	var ok bool
	query := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE id = $1 AND activo = true)", d.qualify(table))
	if err := d.db.GetContext(ctx, &ok, query, id); err != nil {
		return false, err
	}
	return ok, nil
}

// Repository es el acceso a una tabla sobre PostgreSQL.
type Repository[T any, PT store.Model[T]] struct {
	db    *DB
	table store.Table
	name  string
}

// NewRepository crea un repositorio para table dentro del esquema de db.
func NewRepository[T any, PT store.Model[T]](db *DB, table store.Table) *Repository[T, PT] {
	return &Repository[T, PT]{db: db, table: table, name: db.qualify(table.Name)}
}

func (r *Repository[T, PT]) selectColumns() string {
	cols := append(append([]string{}, auditColumns...), r.table.Columns...)
	return strings.Join(cols, ", ")
}

func (r *Repository[T, PT]) where(q store.Query) (string, []interface{}) {
	clauses := []string{"activo = true"}
	args := make([]interface{}, 0, len(q.Filters)+1)

	for _, f := range q.Filters {
		switch f.Op {
		case store.OpIn:
			args = append(args, pq.Array(f.Value))
			clauses = append(clauses, fmt.Sprintf("%s = ANY($%d)", f.Column, len(args)))
		case store.OpEq, store.OpGte, store.OpLte:
			args = append(args, f.Value)
			clauses = append(clauses, fmt.Sprintf("%s %s $%d", f.Column, f.Op, len(args)))
		}
	}

	if term := strings.TrimSpace(q.Search); term != "" && len(r.table.Search) > 0 {
		args = append(args, "%"+escapeLike(term)+"%")
		parts := make([]string, 0, len(r.table.Search))
		for _, col := range r.table.Search {
			parts = append(parts, fmt.Sprintf("%s ILIKE $%d", col, len(args)))
		}
		clauses = append(clauses, "("+strings.Join(parts, " OR ")+")")
	}
	return strings.Join(clauses, " AND "), args
}

func (r *Repository[T, PT]) List(ctx context.Context, q store.Query) ([]T, int64, error) {
	where, args := r.where(q)

	var total int64
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", r.name, where)
	if err := r.db.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY %s, id", r.selectColumns(), r.name, where, r.table.Order())
	switch {
	case q.PerPage > 0:
		args = append(args, q.PerPage, q.Offset())
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	case q.Limit > 0:
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	items := make([]T, 0)
	if err := r.db.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *Repository[T, PT]) Get(ctx context.Context, id int64) (*T, error) {
	return r.get(ctx, id, true)
}

func (r *Repository[T, PT]) GetAny(ctx context.Context, id int64) (*T, error) {
	return r.get(ctx, id, false)
}

func (r *Repository[T, PT]) get(ctx context.Context, id int64, onlyActive bool) (*T, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", r.selectColumns(), r.name)
	if onlyActive {
		query += " AND activo = true"
	}
	var rec T
	if err := r.db.db.GetContext(ctx, &rec, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (r *Repository[T, PT]) Insert(ctx context.Context, rec *T, actor *int64) error {
	now := time.Now().UTC()
	meta := PT(rec).Meta()
	meta.Activo = true
	meta.Version = 1
	meta.CreatedBy = actor
	meta.UpdatedBy = actor
	meta.DeletedBy = nil
	meta.CreatedAt = now
	meta.UpdatedAt = now
	meta.DeletedAt = nil

	cols := append(append([]string{}, r.table.Columns...), "activo", "version", "created_by", "updated_by", "created_at", "updated_at")
	named := make([]string, len(cols))
	for i, c := range cols {
		named[i] = ":" + c
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id", r.name, strings.Join(cols, ", "), strings.Join(named, ", "))

	bound, args, err := r.db.db.BindNamed(query, rec)
	if err != nil {
		return err
	}
	if err := r.db.db.QueryRowxContext(ctx, bound, args...).Scan(&meta.Id); err != nil {
		return translate(err)
	}
	return nil
}

func (r *Repository[T, PT]) Update(ctx context.Context, rec *T, actor *int64, expectedVersion int64) error {
	meta := PT(rec).Meta()
	meta.UpdatedBy = actor
	meta.UpdatedAt = time.Now().UTC()
	meta.Version = expectedVersion

	sets := make([]string, 0, len(r.table.Columns)+3)
	for _, c := range r.table.Columns {
		sets = append(sets, fmt.Sprintf("%s = :%s", c, c))
	}
	sets = append(sets, "updated_by = :updated_by", "updated_at = :updated_at", "version = version + 1")

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = :id AND activo = true", r.name, strings.Join(sets, ", "))
	if expectedVersion > 0 {
		query += " AND version = :version"
	}
	query += " RETURNING version, created_by, created_at"

	bound, args, err := r.db.db.BindNamed(query, rec)
	if err != nil {
		return err
	}
	err = r.db.db.QueryRowxContext(ctx, bound, args...).Scan(&meta.Version, &meta.CreatedBy, &meta.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		exists, existsErr := r.Exists(ctx, meta.Id)
		if existsErr != nil {
			return existsErr
		}
		if exists && expectedVersion > 0 {
			return store.ErrVersionMismatch
		}
		return store.ErrNotFound
	}
	if err != nil {
		return translate(err)
	}
	meta.Activo = true
	return nil
}

func (r *Repository[T, PT]) SoftDelete(ctx context.Context, id int64, actor *int64) error {
	now := time.Now().UTC()
	query := fmt.Sprintf("UPDATE %s SET deleted_by = $2, deleted_at = $3, updated_at = $3, activo = false WHERE id = $1 AND activo = true", r.name)
	res, err := r.db.db.ExecContext(ctx, query, id, actor, now)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *Repository[T, PT]) Exists(ctx context.Context, id int64) (bool, error) {
	return r.db.ExistsActive(ctx, r.table.Name, id)
}

func (r *Repository[T, PT]) Taken(ctx context.Context, column string, value interface{}, excludeID int64) (bool, error) {
	var taken bool
	query := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE %s = $1 AND id <> $2 AND activo = true)", r.name, column)
	if err := r.db.db.GetContext(ctx, &taken, query, value, excludeID); err != nil {
		return false, err
	}
	return taken, nil
}

func translate(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", store.ErrConflict, pqErr.Constraint)
	}
	return err
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
