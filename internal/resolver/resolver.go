// Package resolver valida y obtiene recursos que pertenecen a otros servicios
// consultando su API HTTP. Todas las consultas de una petición comparten un mismo
// presupuesto de tiempo.
package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/beego/beego/v2/core/logs"
	"github.com/redis/go-redis/v9"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"github.com/udistrital/microservicios_crud/helpers"
	internalhelpers "github.com/udistrital/microservicios_crud/internal/helpers"
)

var (
	// ErrNotFound indica que el servicio dueño respondió 404.
	ErrNotFound = errors.New("recurso remoto no encontrado")
	// ErrUnavailable agrupa cualquier otra falla: timeout, transporte, status o sobre inválido.
	ErrUnavailable = errors.New("servicio remoto no disponible")
)

const (
	defaultTimeout     = 5 * time.Second
	defaultConcurrency = 4
)

// Options ajusta el comportamiento del Resolver. Los ceros toman valores por defecto.
type Options struct {
	Timeout     time.Duration
	CacheTTL    time.Duration
	Concurrency int
	Redis       redis.UniversalClient
	HTTPClient  *http.Client
}

// Resolver consulta recursos de servicios hermanos.
type Resolver struct {
	endpoints   Endpoints
	client      *http.Client
	timeout     time.Duration
	concurrency int
	cache       *readCache
}

// New crea un Resolver sobre endpoints.
func New(endpoints Endpoints, opts Options) *Resolver {
	r := &Resolver{
		endpoints:   endpoints,
		client:      opts.HTTPClient,
		timeout:     opts.Timeout,
		concurrency: opts.Concurrency,
		cache:       newReadCache(opts.CacheTTL, opts.Redis),
	}
	if r.client == nil {
		r.client = &http.Client{Transport: http.DefaultTransport}
	}
	if r.timeout <= 0 {
		r.timeout = defaultTimeout
	}
	if r.concurrency <= 0 {
		r.concurrency = defaultConcurrency
	}
	return r
}

type budgetKey struct{}

// WithBudget fija el plazo total que comparten todas las consultas remotas hechas con ctx.
// Un presupuesto ya presente no se extiende.
func WithBudget(ctx context.Context, d time.Duration) context.Context {
	if d <= 0 {
		return ctx
	}
	if _, ok := budgetDeadline(ctx); ok {
		return ctx
	}
	return context.WithValue(ctx, budgetKey{}, time.Now().Add(d))
}

func budgetDeadline(ctx context.Context) (time.Time, bool) {
	dl, ok := ctx.Value(budgetKey{}).(time.Time)
	return dl, ok
}

// callContext limita una consulta a min(timeout, presupuesto restante).
func (r *Resolver) callContext(ctx context.Context) (context.Context, context.CancelFunc, error) {
	timeout := r.timeout
	if dl, ok := budgetDeadline(ctx); ok {
		remaining := time.Until(dl)
		if remaining <= 0 {
			return nil, nil, fmt.Errorf("%w: presupuesto de tiempo agotado", ErrUnavailable)
		}
		if remaining < timeout {
			timeout = remaining
		}
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	return callCtx, cancel, nil
}

func forwardHeaders(ctx context.Context) map[string]string {
	p := internalhelpers.PrincipalFrom(ctx)
	return map[string]string{
		internalhelpers.HeaderAuthorization: p.Authorization,
		internalhelpers.HeaderCorrelationID: p.CorrelationID,
	}
}

// get hace la consulta y devuelve el campo data del sobre.
func (r *Resolver) get(ctx context.Context, ref Ref, op, target string) (gjson.Result, error) {
	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues(ref.Service, ref.Resource, op).Observe(time.Since(start).Seconds())
	}()

	callCtx, cancel, err := r.callContext(ctx)
	if err != nil {
		requestsTotal.WithLabelValues(ref.Service, ref.Resource, op, outcomeUnavailable).Inc()
		return gjson.Result{}, err
	}
	defer cancel()

	body, status, err := helpers.DoGETStatus(callCtx, r.client, target, forwardHeaders(ctx))
	if err != nil {
		if helpers.IsHTTPError(err, http.StatusNotFound) {
			requestsTotal.WithLabelValues(ref.Service, ref.Resource, op, outcomeNotFound).Inc()
			return gjson.Result{}, ErrNotFound
		}
		requestsTotal.WithLabelValues(ref.Service, ref.Resource, op, outcomeUnavailable).Inc()
		return gjson.Result{}, fmt.Errorf("%w: %s: %w", ErrUnavailable, ref, err)
	}

	if status != http.StatusOK {
		requestsTotal.WithLabelValues(ref.Service, ref.Resource, op, outcomeUnavailable).Inc()
		return gjson.Result{}, fmt.Errorf("%w: %s: status %d", ErrUnavailable, ref, status)
	}
	if !gjson.ValidBytes(body) {
		requestsTotal.WithLabelValues(ref.Service, ref.Resource, op, outcomeUnavailable).Inc()
		return gjson.Result{}, fmt.Errorf("%w: %s: respuesta no es JSON", ErrUnavailable, ref)
	}
	envelope := gjson.ParseBytes(body)
	if !envelope.Get("success").Bool() {
		requestsTotal.WithLabelValues(ref.Service, ref.Resource, op, outcomeUnavailable).Inc()
		return gjson.Result{}, fmt.Errorf("%w: %s: %s", ErrUnavailable, ref, envelope.Get("message").String())
	}
	requestsTotal.WithLabelValues(ref.Service, ref.Resource, op, outcomeOK).Inc()
	return envelope.Get("data"), nil
}

// Exists confirma que el recurso existe ahora mismo. Nunca usa la caché.
// (false, nil) significa 404; cualquier otra falla devuelve ErrUnavailable.
func (r *Resolver) Exists(ctx context.Context, ref Ref, id int64) (bool, error) {
	base, err := r.endpoints.BaseURL(ref.Service)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	data, err := r.get(ctx, ref, "exists", ref.itemURL(base, id))
	switch {
	case errors.Is(err, ErrNotFound):
		r.cache.forget(ctx, ref, id)
		return false, nil
	case err != nil:
		logs.Warn("resolver exists ref=%s id=%d err=%v", ref, id, err)
		return false, err
	}
	if data.Exists() {
		r.cache.set(ctx, ref, id, json.RawMessage(data.Raw))
	}
	return true, nil
}

// Fetch devuelve la representación (campo data) del recurso remoto.
func (r *Resolver) Fetch(ctx context.Context, ref Ref, id int64) (json.RawMessage, error) {
	if raw, ok := r.cache.get(ctx, ref, id); ok {
		requestsTotal.WithLabelValues(ref.Service, ref.Resource, "fetch", outcomeCacheHit).Inc()
		return raw, nil
	}
	base, err := r.endpoints.BaseURL(ref.Service)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	data, err := r.get(ctx, ref, "fetch", ref.itemURL(base, id))
	if err != nil {
		return nil, err
	}
	raw := json.RawMessage(data.Raw)
	r.cache.set(ctx, ref, id, raw)
	return raw, nil
}

// FetchMany obtiene varios recursos del mismo tipo con una sola consulta (?ids=).
// Si la consulta en lote falla, recurre a consultas individuales con concurrencia
// acotada. El mapa contiene los recursos obtenidos aunque se devuelva error.
func (r *Resolver) FetchMany(ctx context.Context, ref Ref, ids []int64) (map[int64]json.RawMessage, error) {
	out := make(map[int64]json.RawMessage, len(ids))
	missing := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if raw, ok := r.cache.get(ctx, ref, id); ok {
			requestsTotal.WithLabelValues(ref.Service, ref.Resource, "fetch", outcomeCacheHit).Inc()
			out[id] = raw
			continue
		}
		missing = append(missing, id)
	}

	switch len(missing) {
	case 0:
		return out, nil
	case 1:
		raw, err := r.Fetch(ctx, ref, missing[0])
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return out, nil
			}
			return out, err
		}
		out[missing[0]] = raw
		return out, nil
	}

	batchErr := r.fetchBatch(ctx, ref, missing, out)
	if batchErr == nil {
		return out, nil
	}
	logs.Warn("resolver batch ref=%s ids=%d err=%v; consultando uno a uno", ref, len(missing), batchErr)
	return out, r.fetchEach(ctx, ref, missing, out)
}

func (r *Resolver) fetchBatch(ctx context.Context, ref Ref, ids []int64, out map[int64]json.RawMessage) error {
	base, err := r.endpoints.BaseURL(ref.Service)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	target := ref.collectionURL(base) + "?ids=" + url.QueryEscape(strings.Join(parts, ","))

	data, err := r.get(ctx, ref, "batch", target)
	if err != nil {
		return err
	}
	items := data
	if data.IsObject() {
		items = data.Get("items")
	}
	if !items.IsArray() {
		return fmt.Errorf("%w: %s: lote sin arreglo de datos", ErrUnavailable, ref)
	}
	items.ForEach(func(_, item gjson.Result) bool {
		id := item.Get("id").Int()
		if id > 0 {
			raw := json.RawMessage(item.Raw)
			out[id] = raw
			r.cache.set(ctx, ref, id, raw)
		}
		return true
	})
	return nil
}

func (r *Resolver) fetchEach(ctx context.Context, ref Ref, ids []int64, out map[int64]json.RawMessage) error {
	var (
		mu       sync.Mutex
		firstErr error
		g        errgroup.Group
	)
	g.SetLimit(r.concurrency)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			raw, err := r.Fetch(ctx, ref, id)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				out[id] = raw
			case errors.Is(err, ErrNotFound):
			case firstErr == nil:
				firstErr = err
			}
			return nil
		})
	}
	_ = g.Wait()
	return firstErr
}

// Count cuenta las filas activas del recurso remoto cuya columna column vale id.
// Se usa para no eliminar registros que otros servicios aún referencian.
func (r *Resolver) Count(ctx context.Context, ref Ref, column string, id int64) (int64, error) {
	base, err := r.endpoints.BaseURL(ref.Service)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	q := url.Values{}
	q.Set(column, strconv.FormatInt(id, 10))
	q.Set("per_page", "1")
	data, err := r.get(ctx, ref, "count", ref.collectionURL(base)+"?"+q.Encode())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, fmt.Errorf("%w: %s no expone el listado", ErrUnavailable, ref)
		}
		return 0, err
	}
	total := data.Get("total")
	if !total.Exists() {
		return 0, fmt.Errorf("%w: %s: listado sin total", ErrUnavailable, ref)
	}
	return total.Int(), nil
}
