package validation

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udistrital/microservicios_crud/internal/resolver"
	"github.com/udistrital/microservicios_crud/internal/store"
	"github.com/udistrital/microservicios_crud/internal/store/memory"
	"github.com/udistrital/microservicios_crud/models"
)

type stubRemote struct {
	exists bool
	err    error
	calls  int
}

func (s *stubRemote) Exists(_ context.Context, _ resolver.Ref, _ int64) (bool, error) {
	s.calls++
	return s.exists, s.err
}

func strPtr(s string) *string { return &s }

func TestStructUsesJSONNamesAndSpanishMessages(t *testing.T) {
	v := New()

	errs, err := v.Struct(&models.Pais{CodigoIso3: "HONDURAS", CodigoIso2: strPtr("H1")})
	require.NoError(t, err)

	assert.Equal(t, []string{"el campo es obligatorio"}, errs["nombre"])
	assert.Equal(t, []string{"debe tener exactamente 3 caracteres"}, errs["codigo_iso3"])
	assert.Equal(t, []string{"sólo admite letras"}, errs["codigo_iso2"])
}

func TestStructChecksEnumsAndRanges(t *testing.T) {
	v := New()
	lat := 120.0

	errs, err := v.Struct(&models.UbicacionGeografica{Nombre: "Base", Latitud: &lat})
	require.NoError(t, err)
	assert.Equal(t, []string{"debe ser menor o igual a 90"}, errs["latitud"])

	errs, err = v.Struct(&models.RegistroAcceso{ArchivoId: 1, Accion: "BORRAR", Ip: strPtr("no-ip")})
	require.NoError(t, err)
	assert.Equal(t, []string{"debe ser uno de: VER, DESCARGAR, SUBIR, ELIMINAR"}, errs["accion"])
	assert.Equal(t, []string{"debe ser una dirección IP válida"}, errs["ip"])
}

func TestUniqueExcludesCurrentRow(t *testing.T) {
	ctx := context.Background()
	db := memory.New()
	repo := memory.NewRepository[models.Pais, *models.Pais](db, store.Table{
		Name:    "paises",
		Columns: []string{"nombre", "codigo_iso2", "codigo_iso3", "codigo_telefonico"},
	})
	hn := &models.Pais{Nombre: "Honduras", CodigoIso3: "HND"}
	require.NoError(t, repo.Insert(ctx, hn, nil))

	rules := []Rule{Unique{Name: "codigo_iso3", Store: repo}, Unique{Name: "codigo_iso2", Store: repo}}
	v := New()

	errs, err := v.Check(ctx, &models.Pais{Nombre: "Otro", CodigoIso3: "HND"}, 0, rules)
	require.NoError(t, err)
	assert.Equal(t, []string{MsgTaken}, errs["codigo_iso3"])
	assert.NotContains(t, errs, "codigo_iso2")

	errs, err = v.Check(ctx, &models.Pais{Nombre: "Honduras", CodigoIso3: "HND"}, hn.Id, rules)
	require.NoError(t, err)
	assert.Empty(t, errs)
}

func TestLocalRefChecksSameDatabase(t *testing.T) {
	ctx := context.Background()
	db := memory.New()
	deps := memory.NewRepository[models.Departamento, *models.Departamento](db, store.Table{
		Name:    "departamentos",
		Columns: []string{"nombre", "codigo", "pais_id"},
	})
	d := &models.Departamento{Nombre: "Cortés", Codigo: "05", PaisId: 1}
	require.NoError(t, deps.Insert(ctx, d, nil))

	rules := []Rule{LocalRef{Name: "departamento_id", Table: "departamentos", DB: db}}
	v := New()

	errs, err := v.Check(ctx, &models.Municipio{Nombre: "San Pedro Sula", Codigo: "0501", DepartamentoId: d.Id}, 0, rules)
	require.NoError(t, err)
	assert.Empty(t, errs)

	errs, err = v.Check(ctx, &models.Municipio{Nombre: "X", Codigo: "X", DepartamentoId: 42}, 0, rules)
	require.NoError(t, err)
	assert.Equal(t, []string{MsgLocalMissing}, errs["departamento_id"])
}

func TestRemoteRefTreatsOutageAsMissing(t *testing.T) {
	ctx := context.Background()
	v := New()
	rec := &models.Departamento{Nombre: "Cortés", Codigo: "05", PaisId: 999999}
	ref := resolver.Ref{Service: "catalogos", Resource: "paises"}

	cases := []struct {
		name   string
		remote *stubRemote
	}{
		{"inexistente", &stubRemote{exists: false}},
		{"caido", &stubRemote{err: fmt.Errorf("%w: timeout", resolver.ErrUnavailable)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			errs, err := v.Check(ctx, rec, 0, []Rule{RemoteRef{Name: "pais_id", Ref: ref, Resolver: tc.remote}})
			require.NoError(t, err)
			assert.Equal(t, []string{MsgRemoteMissing}, errs["pais_id"])
		})
	}
}

func TestRulesSkipFieldsThatFailedTags(t *testing.T) {
	remote := &stubRemote{exists: true}
	v := New()

	errs, err := v.Check(context.Background(), &models.Departamento{Nombre: "Cortés", Codigo: "05"}, 0, []Rule{
		RemoteRef{Name: "pais_id", Ref: resolver.Ref{Service: "catalogos", Resource: "paises"}, Resolver: remote},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"el campo es obligatorio"}, errs["pais_id"])
	assert.Zero(t, remote.calls)
}

func TestNullableReferencesAreSkipped(t *testing.T) {
	remote := &stubRemote{exists: false}
	v := New()

	errs, err := v.Check(context.Background(), &models.DatosPersonales{Nombres: "Ana", Apellidos: "Paz", DocumentoIdentidad: "0801"}, 0, []Rule{
		RemoteRef{Name: "pais_nacimiento_id", Ref: resolver.Ref{Service: "catalogos", Resource: "paises"}, Resolver: remote},
	})
	require.NoError(t, err)
	assert.Empty(t, errs)
	assert.Zero(t, remote.calls)
}

func TestInfrastructureErrorsAbortCheck(t *testing.T) {
	boom := errors.New("db down")
	rule := Func{Name: "codigo", Fn: func(context.Context, Input) (string, error) { return "", boom }}

	_, err := New().Check(context.Background(), &models.Permiso{Nombre: "Leer", Clave: "leer"}, 0, []Rule{rule})
	assert.ErrorIs(t, err, boom)
}
