package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internalhelpers "github.com/udistrital/microservicios_crud/internal/helpers"
)

var paises = Ref{Service: "catalogos", Resource: "paises"}

type fakeCatalog struct {
	hits      int64
	batchHits int64
	failBatch bool
	delay     time.Duration
	lastAuth  atomic.Value
	lastCorr  atomic.Value
}

func (f *fakeCatalog) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt64(&f.hits, 1)
	if v := r.Header.Get("Authorization"); v != "" {
		f.lastAuth.Store(v)
	}
	if v := r.Header.Get("X-Correlation-Id"); v != "" {
		f.lastCorr.Store(v)
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	w.Header().Set("Content-Type", "application/json")

	path := strings.TrimPrefix(r.URL.Path, "/api/catalogos/paises")
	switch {
	case path == "" && r.URL.Query().Get("ids") != "":
		atomic.AddInt64(&f.batchHits, 1)
		if f.failBatch {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"success":false,"message":"boom","error":"internal"}`))
			return
		}
		items := []string{}
		for _, id := range strings.Split(r.URL.Query().Get("ids"), ",") {
			if id != "404" {
				items = append(items, fmt.Sprintf(`{"id":%s,"nombre":"Pais %s"}`, id, id))
			}
		}
		_, _ = w.Write([]byte(`{"success":true,"message":"ok","data":[` + strings.Join(items, ",") + `]}`))
	case path == "" && r.URL.Query().Get("pais_id") != "":
		_, _ = w.Write([]byte(`{"success":true,"message":"ok","data":{"items":[],"total":3,"page":1,"per_page":1,"last_page":3}}`))
	case path == "/404", path == "/999999":
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"success":false,"message":"no encontrado","error":"not_found"}`))
	case path == "/202":
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"success":true,"message":"en proceso","data":{"id":202}}`))
	case path == "/500":
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success":false,"message":"boom","error":"internal"}`))
	default:
		id := strings.TrimPrefix(path, "/")
		_, _ = w.Write([]byte(fmt.Sprintf(`{"success":true,"message":"ok","data":{"id":%s,"nombre":"Pais %s"}}`, id, id)))
	}
}

func newResolver(t *testing.T, fake *fakeCatalog, opts Options) *Resolver {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return New(StaticEndpoints{"catalogos": srv.URL}, opts)
}

func TestExistsDistinguishesMissingFromUnavailable(t *testing.T) {
	r := newResolver(t, &fakeCatalog{}, Options{})
	ctx := context.Background()

	ok, err := r.Exists(ctx, paises, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.Exists(ctx, paises, 999999)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = r.Exists(ctx, paises, 500)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.False(t, ok)
}

func TestExistsTimesOut(t *testing.T) {
	r := newResolver(t, &fakeCatalog{delay: 200 * time.Millisecond}, Options{Timeout: 20 * time.Millisecond})

	ok, err := r.Exists(context.Background(), paises, 1)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, ok)
}

func TestExistsRequiresStatusOK(t *testing.T) {
	r := newResolver(t, &fakeCatalog{}, Options{})

	ok, err := r.Exists(context.Background(), paises, 202)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.False(t, ok)
}

func TestExhaustedBudgetSkipsNetwork(t *testing.T) {
	fake := &fakeCatalog{}
	r := newResolver(t, fake, Options{})

	ctx := WithBudget(context.Background(), time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	_, err := r.Fetch(ctx, paises, 1)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Zero(t, atomic.LoadInt64(&fake.hits))
}

func TestWithBudgetKeepsEarlierDeadline(t *testing.T) {
	ctx := WithBudget(context.Background(), time.Second)
	first, _ := budgetDeadline(ctx)
	ctx = WithBudget(ctx, time.Hour)
	second, _ := budgetDeadline(ctx)
	assert.Equal(t, first, second)
}

func TestUnknownServiceIsUnavailable(t *testing.T) {
	r := New(StaticEndpoints{}, Options{})
	_, err := r.Exists(context.Background(), paises, 1)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, ErrUnknownService)

	_, err = r.Fetch(context.Background(), paises, 1)
	assert.ErrorIs(t, err, ErrUnknownService)
	_, err = r.Count(context.Background(), paises, "pais_id", 1)
	assert.ErrorIs(t, err, ErrUnknownService)
}

func TestFetchForwardsPrincipalHeaders(t *testing.T) {
	fake := &fakeCatalog{}
	r := newResolver(t, fake, Options{})
	ctx := internalhelpers.WithPrincipal(context.Background(), internalhelpers.Principal{
		Authorization: "Bearer abc",
		CorrelationID: "corr-1",
	})

	raw, err := r.Fetch(ctx, paises, 7)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":7,"nombre":"Pais 7"}`, string(raw))
	assert.Equal(t, "Bearer abc", fake.lastAuth.Load())
	assert.Equal(t, "corr-1", fake.lastCorr.Load())
}

func TestFetchManyUsesSingleBatchRequest(t *testing.T) {
	fake := &fakeCatalog{}
	r := newResolver(t, fake, Options{})

	got, err := r.FetchMany(context.Background(), paises, []int64{1, 2, 2, 3, 404, 0})
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.NotContains(t, got, int64(404))
	assert.Equal(t, int64(1), atomic.LoadInt64(&fake.hits))
	assert.Equal(t, int64(1), atomic.LoadInt64(&fake.batchHits))

	var pais struct {
		Nombre string `json:"nombre"`
	}
	require.NoError(t, json.Unmarshal(got[2], &pais))
	assert.Equal(t, "Pais 2", pais.Nombre)
}

func TestFetchManyFallsBackToSingleFetches(t *testing.T) {
	fake := &fakeCatalog{failBatch: true}
	r := newResolver(t, fake, Options{Concurrency: 2})

	got, err := r.FetchMany(context.Background(), paises, []int64{1, 2, 3, 404})
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Equal(t, int64(1+4), atomic.LoadInt64(&fake.hits))
}

func TestFetchManyReportsPartialFailures(t *testing.T) {
	fake := &fakeCatalog{failBatch: true}
	r := newResolver(t, fake, Options{})

	got, err := r.FetchMany(context.Background(), paises, []int64{1, 500})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, got, int64(1))
}

func TestFetchUsesLocalCache(t *testing.T) {
	fake := &fakeCatalog{}
	r := newResolver(t, fake, Options{CacheTTL: time.Minute})
	ctx := context.Background()

	first, err := r.Fetch(ctx, paises, 5)
	require.NoError(t, err)
	second, err := r.Fetch(ctx, paises, 5)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), atomic.LoadInt64(&fake.hits))

	// Exists siempre consulta al dueño del recurso.
	_, err = r.Exists(ctx, paises, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(2), atomic.LoadInt64(&fake.hits))
}

func TestFetchSharesRedisTier(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	fake := &fakeCatalog{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	endpoints := StaticEndpoints{"catalogos": srv.URL}

	ctx := context.Background()
	a := New(endpoints, Options{CacheTTL: time.Minute, Redis: rdb})
	_, err := a.Fetch(ctx, paises, 9)
	require.NoError(t, err)
	assert.True(t, mr.Exists(redisPrefix+"catalogos/paises/9"))

	b := New(endpoints, Options{CacheTTL: time.Minute, Redis: rdb})
	raw, err := b.Fetch(ctx, paises, 9)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":9,"nombre":"Pais 9"}`, string(raw))
	assert.Equal(t, int64(1), atomic.LoadInt64(&fake.hits))
}

func TestCountReadsPaginatedTotal(t *testing.T) {
	r := newResolver(t, &fakeCatalog{}, Options{})

	n, err := r.Count(context.Background(), paises, "pais_id", 4)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
