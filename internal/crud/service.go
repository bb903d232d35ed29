// Package crud implementa las operaciones comunes a todos los recursos: listado,
// búsqueda, consulta, alta, actualización y borrado lógico.
package crud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/beego/beego/v2/core/logs"
	"github.com/tidwall/gjson"

	"github.com/udistrital/microservicios_crud/helpers"
	internalhelpers "github.com/udistrital/microservicios_crud/internal/helpers"
	"github.com/udistrital/microservicios_crud/internal/resolver"
	"github.com/udistrital/microservicios_crud/internal/store"
	"github.com/udistrital/microservicios_crud/internal/validation"
)

const (
	minSearchLength    = 2
	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

// Handler es la vista sin genéricos de un recurso que usan los controladores.
type Handler interface {
	Resource() string
	ParentRoutes() []string
	ActionNames() []string
	List(ctx context.Context, params url.Values) (interface{}, error)
	Search(ctx context.Context, params url.Values) (interface{}, error)
	ByParent(ctx context.Context, route string, parentID int64, params url.Values) (interface{}, error)
	Get(ctx context.Context, id int64) (interface{}, error)
	Create(ctx context.Context, body []byte) (interface{}, error)
	Update(ctx context.Context, id int64, body []byte) (interface{}, error)
	Delete(ctx context.Context, id int64) error
	Action(ctx context.Context, name string, id int64) (interface{}, error)
}

// Remote es la parte del resolver que usa el servicio.
type Remote interface {
	FetchMany(ctx context.Context, ref resolver.Ref, ids []int64) (map[int64]json.RawMessage, error)
	Count(ctx context.Context, ref resolver.Ref, column string, id int64) (int64, error)
}

// Deps agrupa lo que comparten los recursos de un mismo servicio.
type Deps struct {
	DB        store.Database
	Validator *validation.Validator
	Remote    Remote
}

// Page es la respuesta paginada de un listado.
type Page[T any] struct {
	Items    []T   `json:"items"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PerPage  int   `json:"per_page"`
	LastPage int   `json:"last_page"`
}

// Service implementa Handler para un tipo concreto.
type Service[T any, PT store.Model[T]] struct {
	def  Definition[T]
	repo store.Repository[T]
	deps Deps
}

// New crea el servicio de un recurso.
func New[T any, PT store.Model[T]](def Definition[T], repo store.Repository[T], deps Deps) *Service[T, PT] {
	if deps.Validator == nil {
		deps.Validator = validation.New()
	}
	return &Service[T, PT]{def: def, repo: repo, deps: deps}
}

func (s *Service[T, PT]) Resource() string { return s.def.Resource }

// Repository expone el repositorio para operaciones propias del recurso.
func (s *Service[T, PT]) Repository() store.Repository[T] { return s.repo }

func (s *Service[T, PT]) ParentRoutes() []string {
	out := make([]string, len(s.def.Parents))
	for i, p := range s.def.Parents {
		out[i] = p.Route
	}
	return out
}

func (s *Service[T, PT]) ActionNames() []string {
	out := make([]string, len(s.def.Actions))
	for i, a := range s.def.Actions {
		out[i] = a.Name
	}
	return out
}

func (s *Service[T, PT]) List(ctx context.Context, params url.Values) (interface{}, error) {
	q, paginated, err := s.query(params)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, q, paginated)
}

func (s *Service[T, PT]) list(ctx context.Context, q store.Query, paginated bool) (interface{}, error) {
	items, total, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, s.fail(err, 0)
	}
	s.Enrich(ctx, pointers(items))
	if !paginated {
		return items, nil
	}
	return Page[T]{
		Items:    items,
		Total:    total,
		Page:     q.Page,
		PerPage:  q.PerPage,
		LastPage: internalhelpers.LastPage(total, q.PerPage),
	}, nil
}

// Search responde vacío cuando el término tiene menos de dos caracteres.
func (s *Service[T, PT]) Search(ctx context.Context, params url.Values) (interface{}, error) {
	term := strings.TrimSpace(params.Get("q"))
	if utf8.RuneCountInString(term) < minSearchLength {
		return []T{}, nil
	}
	q, _, err := s.query(params)
	if err != nil {
		return nil, err
	}
	q.Search = term
	q.Page, q.PerPage = 0, 0
	q.Limit = defaultSearchLimit
	if n, err := strconv.Atoi(params.Get("limit")); err == nil && n > 0 {
		q.Limit = n
	}
	if q.Limit > maxSearchLimit {
		q.Limit = maxSearchLimit
	}
	return s.list(ctx, q, false)
}

func (s *Service[T, PT]) ByParent(ctx context.Context, route string, parentID int64, params url.Values) (interface{}, error) {
	for _, p := range s.def.Parents {
		if p.Route != route {
			continue
		}
		q, paginated, err := s.query(params)
		if err != nil {
			return nil, err
		}
		q.Filters = append(q.Filters, store.Filter{Column: p.Column, Op: store.OpEq, Value: parentID})
		return s.list(ctx, q, paginated)
	}
	return nil, helpers.NotFound(fmt.Sprintf("ruta %s no disponible para %s", route, s.def.Resource))
}

func (s *Service[T, PT]) Get(ctx context.Context, id int64) (interface{}, error) {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, s.fail(err, id)
	}
	s.Enrich(ctx, []*T{rec})
	return rec, nil
}

func (s *Service[T, PT]) Create(ctx context.Context, body []byte) (interface{}, error) {
	rec, err := decode[T](body)
	if err != nil {
		return nil, err
	}
	if s.def.BeforeCreate != nil {
		if err := s.def.BeforeCreate(ctx, rec); err != nil {
			return nil, err
		}
	}
	if err := s.validate(ctx, rec, 0); err != nil {
		return nil, err
	}
	if err := s.repo.Insert(ctx, rec, internalhelpers.Actor(ctx)); err != nil {
		return nil, s.fail(err, 0)
	}
	s.Enrich(ctx, []*T{rec})
	return rec, nil
}

// Update reemplaza los campos editables. Si el cuerpo trae "version", sólo se aplica
// cuando coincide con la almacenada.
func (s *Service[T, PT]) Update(ctx context.Context, id int64, body []byte) (interface{}, error) {
	if s.def.Immutable {
		return nil, s.immutable()
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, s.fail(err, id)
	}
	next, err := decode[T](body)
	if err != nil {
		return nil, err
	}

	var expected int64
	if gjson.GetBytes(body, "version").Exists() {
		expected = PT(next).Meta().Version
		if expected <= 0 {
			return nil, helpers.FieldError("version", "debe ser mayor que 0")
		}
	}
	PT(next).Meta().Id = id

	if s.def.BeforeUpdate != nil {
		if err := s.def.BeforeUpdate(ctx, current, next); err != nil {
			return nil, err
		}
	}
	if err := s.validate(ctx, next, id); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, next, internalhelpers.Actor(ctx), expected); err != nil {
		return nil, s.fail(err, id)
	}
	s.Enrich(ctx, []*T{next})
	return next, nil
}

// Delete marca el registro como eliminado si nada activo lo referencia, ni en este
// servicio ni en los servicios que declaran dependencia.
func (s *Service[T, PT]) Delete(ctx context.Context, id int64) error {
	if s.def.Immutable {
		return s.immutable()
	}
	if _, err := s.repo.Get(ctx, id); err != nil {
		return s.fail(err, id)
	}

	for _, child := range s.def.Children {
		n, err := s.deps.DB.CountActive(ctx, child.Table, child.Column, id)
		if err != nil {
			return s.fail(err, id)
		}
		if n > 0 {
			return helpers.Conflict(fmt.Sprintf("no se puede eliminar: tiene %d %s activos asociados", n, child.Label), nil)
		}
	}

	for _, child := range s.def.RemoteChildren {
		if s.deps.Remote == nil {
			return helpers.Conflict(fmt.Sprintf("no fue posible verificar %s en %s", child.Label, child.Ref.Service), nil)
		}
		n, err := s.deps.Remote.Count(ctx, child.Ref, child.Column, id)
		if err != nil {
			logs.Warn("verificación de dependencias remotas resource=%s id=%d ref=%s err=%v", s.def.Resource, id, child.Ref, err)
			return helpers.Conflict(fmt.Sprintf("no fue posible verificar %s en %s", child.Label, child.Ref.Service), err)
		}
		if n > 0 {
			return helpers.Conflict(fmt.Sprintf("no se puede eliminar: tiene %d %s activos asociados", n, child.Label), nil)
		}
	}

	if err := s.repo.SoftDelete(ctx, id, internalhelpers.Actor(ctx)); err != nil {
		return s.fail(err, id)
	}
	return nil
}

func (s *Service[T, PT]) Action(ctx context.Context, name string, id int64) (interface{}, error) {
	for _, a := range s.def.Actions {
		if a.Name == name {
			return a.Fn(ctx, id)
		}
	}
	return nil, helpers.NotFound(fmt.Sprintf("acción %s no disponible para %s", name, s.def.Resource))
}

// Enrich embebe los recursos remotos con una consulta en lote por referencia. Una
// referencia que no se pudo obtener queda en null.
func (s *Service[T, PT]) Enrich(ctx context.Context, items []*T) {
	if len(items) == 0 || len(s.def.Enrichments) == 0 {
		return
	}
	for _, e := range s.def.Enrichments {
		ids := make([]int64, 0, len(items))
		for _, item := range items {
			if id := e.ID(item); id > 0 {
				ids = append(ids, id)
			}
		}

		var found map[int64]json.RawMessage
		if len(ids) > 0 && s.deps.Remote != nil {
			var err error
			found, err = s.deps.Remote.FetchMany(ctx, e.Ref, ids)
			if err != nil {
				logs.Warn("enriquecimiento incompleto resource=%s ref=%s err=%v", s.def.Resource, e.Ref, err)
			}
		}
		for _, item := range items {
			e.Set(item, found[e.ID(item)])
		}
	}
}

// query traduce la query string a store.Query. paginated es true con page o per_page.
func (s *Service[T, PT]) query(params url.Values) (store.Query, bool, error) {
	var q store.Query
	fieldErrs := map[string][]string{}

	for _, f := range s.def.Filters {
		raw := strings.TrimSpace(params.Get(f.Param))
		if raw == "" {
			continue
		}
		var value interface{} = raw
		if f.Kind == Int {
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				fieldErrs[f.Param] = append(fieldErrs[f.Param], "debe ser un número entero")
				continue
			}
			value = n
		}
		q.Filters = append(q.Filters, store.Filter{Column: f.Column, Op: f.Op, Value: value})
	}

	if raw := strings.TrimSpace(params.Get("ids")); raw != "" {
		ids, err := internalhelpers.ParseIDList(raw)
		if err != nil {
			fieldErrs["ids"] = append(fieldErrs["ids"], "debe ser una lista de ids separados por coma")
		} else {
			q.Filters = append(q.Filters, store.Filter{Column: "id", Op: store.OpIn, Value: ids})
		}
	}
	if len(fieldErrs) > 0 {
		return q, false, helpers.Validation(fieldErrs)
	}

	q.Search = strings.TrimSpace(params.Get("q"))
	_, hasPage := params["page"]
	_, hasSize := params["per_page"]
	if hasPage || hasSize {
		q.Page, q.PerPage = internalhelpers.ParsePageSize(params.Get("page"), params.Get("per_page"))
		return q, true, nil
	}
	return q, false, nil
}

func (s *Service[T, PT]) validate(ctx context.Context, rec *T, id int64) error {
	errs, err := s.deps.Validator.Check(ctx, rec, id, s.def.Rules)
	if err != nil {
		return helpers.Internal(err)
	}
	if len(errs) > 0 {
		return helpers.Validation(errs)
	}
	return nil
}

func (s *Service[T, PT]) immutable() error {
	return helpers.Forbidden(fmt.Sprintf("los registros de %s no se pueden modificar ni eliminar", s.def.Label))
}

// fail traduce los errores del almacenamiento a errores de la API.
func (s *Service[T, PT]) fail(err error, id int64) error {
	var appErr *helpers.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, store.ErrNotFound):
		return helpers.NotFound(fmt.Sprintf("no existe un registro de %s con id %d", s.def.Label, id))
	case errors.Is(err, store.ErrVersionMismatch):
		return helpers.Conflict("el registro fue modificado por otra petición; consulte la versión vigente", err)
	case errors.Is(err, store.ErrConflict):
		return helpers.Conflict("ya existe un registro con los mismos datos únicos", err)
	default:
		return helpers.Internal(err)
	}
}

func decode[T any](body []byte) (*T, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, helpers.BadRequest("el cuerpo de la petición está vacío")
	}
	rec := new(T)
	if err := json.Unmarshal(body, rec); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return nil, helpers.FieldError(typeErr.Field, "tipo de dato inválido")
		}
		return nil, helpers.BadRequest("el cuerpo de la petición no es JSON válido")
	}
	return rec, nil
}

func pointers[T any](items []T) []*T {
	out := make([]*T, len(items))
	for i := range items {
		out[i] = &items[i]
	}
	return out
}
