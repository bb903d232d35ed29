package modules

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/udistrital/microservicios_crud/helpers"
	"github.com/udistrital/microservicios_crud/internal/crud"
	"github.com/udistrital/microservicios_crud/internal/resolver"
	"github.com/udistrital/microservicios_crud/models"
	"github.com/udistrital/microservicios_crud/models/requestresponse"
)

// serve publica las lecturas de los módulos con el mismo sobre que la API real.
func serve(t *testing.T, mods ...Module) string {
	t.Helper()
	byPath := map[string]crud.Handler{}
	for _, m := range mods {
		for _, h := range m.Resources {
			byPath["/api/"+m.Name+"/"+h.Resource()] = h
		}
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var (
			data interface{}
			err  error
		)
		path := r.URL.Path
		if h, ok := byPath[path]; ok {
			data, err = h.List(r.Context(), r.URL.Query())
		} else {
			i := strings.LastIndex(path, "/")
			id, convErr := strconv.ParseInt(path[i+1:], 10, 64)
			h, ok := byPath[path[:i]]
			if convErr != nil || !ok {
				err = helpers.NotFound("ruta no encontrada")
			} else {
				data, err = h.Get(r.Context(), id)
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if err != nil {
			appErr := helpers.AsAppError(err, "error")
			w.WriteHeader(appErr.Status)
			_ = json.NewEncoder(w).Encode(requestresponse.NewError(appErr.Message, appErr.Kind, appErr.Fields))
			return
		}
		_ = json.NewEncoder(w).Encode(requestresponse.NewSuccess("ok", data))
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

type cluster struct {
	ctx     context.Context
	modules map[string]Module
}

// newCluster arma los cuatro servicios en memoria, resolviéndose entre sí por HTTP.
func newCluster(t *testing.T) *cluster {
	t.Helper()
	endpoints := resolver.StaticEndpoints{}
	res := resolver.New(endpoints, resolver.Options{Timeout: 2 * time.Second})

	c := &cluster{ctx: context.Background(), modules: map[string]Module{}}
	for _, name := range Names {
		mod, err := Build(name, Env{Backend: MemoryBackend(), Resolver: res})
		require.NoError(t, err)
		c.modules[name] = mod
	}
	for name, mod := range c.modules {
		endpoints[name] = serve(t, mod)
	}
	return c
}

func (c *cluster) handler(t *testing.T, service, resource string) crud.Handler {
	t.Helper()
	for _, h := range c.modules[service].Resources {
		if h.Resource() == resource {
			return h
		}
	}
	t.Fatalf("recurso %s/%s no registrado", service, resource)
	return nil
}

func (c *cluster) create(t *testing.T, service, resource, body string) int64 {
	t.Helper()
	out, err := c.handler(t, service, resource).Create(c.ctx, []byte(body))
	require.NoError(t, err)
	raw, err := json.Marshal(out)
	require.NoError(t, err)
	var rec models.Auditoria
	require.NoError(t, json.Unmarshal(raw, &rec))
	return rec.Id
}

func appError(t *testing.T, err error) *helpers.AppError {
	t.Helper()
	require.Error(t, err)
	var appErr *helpers.AppError
	require.True(t, errors.As(err, &appErr), "se esperaba AppError, llegó %T", err)
	return appErr
}

func TestBuildRejectsUnknownModule(t *testing.T) {
	_, err := Build("nomina", Env{Backend: MemoryBackend()})
	assert.Error(t, err)
}

func TestEveryModuleExposesItsResources(t *testing.T) {
	want := map[string][]string{
		Catalogos:    {"paises", "tipos-estructura", "categorias-personal", "grados", "especialidades", "permisos"},
		Organizacion: {"departamentos", "municipios", "ciudades", "ubicaciones-geograficas", "estructuras-militares"},
		Personal:     {"datos-personales", "perfiles-militares"},
		Archivos:     {"archivos", "registros-acceso"},
	}
	for name, resources := range want {
		mod, err := Build(name, Env{Backend: MemoryBackend()})
		require.NoError(t, err)
		got := make([]string, 0, len(mod.Resources))
		for _, h := range mod.Resources {
			got = append(got, h.Resource())
		}
		assert.Equal(t, resources, got, name)
	}
}

func TestDepartamentoEmbedsPaisFromCatalogos(t *testing.T) {
	c := newCluster(t)
	paisID := c.create(t, Catalogos, "paises", `{"nombre":"Honduras","codigo_iso3":"hnd","codigo_iso2":"hn"}`)

	out, err := c.handler(t, Organizacion, "departamentos").Create(c.ctx,
		[]byte(`{"nombre":"Cortés","codigo":"05","pais_id":`+strconv.FormatInt(paisID, 10)+`}`))
	require.NoError(t, err)

	dep := out.(*models.Departamento)
	assert.Equal(t, "Honduras", embedded(t, dep.Pais, "nombre"))
	assert.Equal(t, "HND", embedded(t, dep.Pais, "codigo_iso3"))
}

func TestDepartamentoRejectsMissingPais(t *testing.T) {
	c := newCluster(t)
	deps := c.handler(t, Organizacion, "departamentos")

	_, err := deps.Create(c.ctx, []byte(`{"nombre":"Cortés","codigo":"05","pais_id":999999}`))
	appErr := appError(t, err)
	assert.Equal(t, http.StatusBadRequest, appErr.Status)
	assert.Contains(t, appErr.Fields["pais_id"], "la referencia no existe")

	list, err := deps.List(c.ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestPaisWithDepartamentosCannotBeDeleted(t *testing.T) {
	c := newCluster(t)
	paisID := c.create(t, Catalogos, "paises", `{"nombre":"Honduras","codigo_iso3":"HND"}`)
	c.create(t, Organizacion, "departamentos", `{"nombre":"Cortés","codigo":"05","pais_id":`+strconv.FormatInt(paisID, 10)+`}`)

	err := c.handler(t, Catalogos, "paises").Delete(c.ctx, paisID)
	assert.Equal(t, http.StatusConflict, appError(t, err).Status)

	otro := c.create(t, Catalogos, "paises", `{"nombre":"Belice","codigo_iso3":"BLZ"}`)
	assert.NoError(t, c.handler(t, Catalogos, "paises").Delete(c.ctx, otro))
}

func TestPaisCodesAreNormalizedAndUnique(t *testing.T) {
	c := newCluster(t)
	paises := c.handler(t, Catalogos, "paises")
	c.create(t, Catalogos, "paises", `{"nombre":"Honduras","codigo_iso3":" hnd "}`)

	_, err := paises.Create(c.ctx, []byte(`{"nombre":"Otra Honduras","codigo_iso3":"HND"}`))
	appErr := appError(t, err)
	assert.Contains(t, appErr.Fields["codigo_iso3"], "el valor ya está registrado")
}

func TestEmptyOptionalCodesAreStoredAsNull(t *testing.T) {
	c := newCluster(t)
	especialidades := c.handler(t, Catalogos, "especialidades")

	for _, nombre := range []string{"Infantería", "Artillería"} {
		out, err := especialidades.Create(c.ctx, []byte(`{"nombre":"`+nombre+`","codigo":"  "}`))
		require.NoError(t, err)
		assert.Nil(t, out.(*models.Especialidad).Codigo)
	}

	out, err := c.handler(t, Catalogos, "paises").Create(c.ctx, []byte(`{"nombre":"Honduras","codigo_iso2":"","codigo_iso3":"HND"}`))
	require.NoError(t, err)
	assert.Nil(t, out.(*models.Pais).CodigoIso2)
	out, err = c.handler(t, Catalogos, "paises").Create(c.ctx, []byte(`{"nombre":"Belice","codigo_iso2":" bz ","codigo_iso3":"BLZ"}`))
	require.NoError(t, err)
	require.NotNil(t, out.(*models.Pais).CodigoIso2)
	assert.Equal(t, "BZ", *out.(*models.Pais).CodigoIso2)
}

func TestArbolNestsSubunidadesWithTipo(t *testing.T) {
	c := newCluster(t)
	tipo := strconv.FormatInt(c.create(t, Catalogos, "tipos-estructura", `{"nombre":"Brigada","nivel":2}`), 10)

	raiz := c.create(t, Organizacion, "estructuras-militares", `{"nombre":"Primera Brigada","codigo":"B1","tipo_estructura_id":`+tipo+`}`)
	hijo := c.create(t, Organizacion, "estructuras-militares",
		`{"nombre":"Batallón 1","codigo":"BI1","tipo_estructura_id":`+tipo+`,"unidad_padre_id":`+strconv.FormatInt(raiz, 10)+`}`)
	c.create(t, Organizacion, "estructuras-militares",
		`{"nombre":"Compañía A","codigo":"CA","tipo_estructura_id":`+tipo+`,"unidad_padre_id":`+strconv.FormatInt(hijo, 10)+`}`)

	out, err := c.handler(t, Organizacion, "estructuras-militares").Action(c.ctx, "arbol", raiz)
	require.NoError(t, err)

	nodo := out.(*models.NodoEstructura)
	require.Len(t, nodo.Subunidades, 1)
	require.Len(t, nodo.Subunidades[0].Subunidades, 1)
	assert.Equal(t, "CA", nodo.Subunidades[0].Subunidades[0].Codigo)
	assert.Empty(t, nodo.Subunidades[0].Subunidades[0].Subunidades)
	assert.Equal(t, "Brigada", embedded(t, nodo.Subunidades[0].Subunidades[0].TipoEstructura, "nombre"))

	raw, err := json.Marshal(nodo.Subunidades[0].Subunidades[0])
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"subunidades":[]`)
}

func TestEstructuraCannotHangFromItsOwnSubunidad(t *testing.T) {
	c := newCluster(t)
	tipo := strconv.FormatInt(c.create(t, Catalogos, "tipos-estructura", `{"nombre":"Brigada","nivel":2}`), 10)
	estructuras := c.handler(t, Organizacion, "estructuras-militares")

	raiz := c.create(t, Organizacion, "estructuras-militares", `{"nombre":"Primera Brigada","codigo":"B1","tipo_estructura_id":`+tipo+`}`)
	hijo := c.create(t, Organizacion, "estructuras-militares",
		`{"nombre":"Batallón 1","codigo":"BI1","tipo_estructura_id":`+tipo+`,"unidad_padre_id":`+strconv.FormatInt(raiz, 10)+`}`)

	_, err := estructuras.Update(c.ctx, raiz,
		[]byte(`{"nombre":"Primera Brigada","codigo":"B1","tipo_estructura_id":`+tipo+`,"unidad_padre_id":`+strconv.FormatInt(hijo, 10)+`}`))
	appErr := appError(t, err)
	assert.Equal(t, http.StatusBadRequest, appErr.Status)
	assert.Contains(t, appErr.Fields["unidad_padre_id"], "la unidad padre no puede ser una de sus subunidades")

	_, err = estructuras.Update(c.ctx, raiz,
		[]byte(`{"nombre":"Primera Brigada","codigo":"B1","tipo_estructura_id":`+tipo+`,"unidad_padre_id":`+strconv.FormatInt(raiz, 10)+`}`))
	assert.Contains(t, appError(t, err).Fields["unidad_padre_id"], "una unidad no puede ser su propia unidad padre")

	err = estructuras.Delete(c.ctx, raiz)
	assert.Equal(t, http.StatusConflict, appError(t, err).Status)
}

func TestPerfilMilitarResolvesEveryCatalog(t *testing.T) {
	c := newCluster(t)
	cat := strconv.FormatInt(c.create(t, Catalogos, "categorias-personal", `{"nombre":"Oficiales","codigo":"OF"}`), 10)
	grado := strconv.FormatInt(c.create(t, Catalogos, "grados", `{"nombre":"Capitán","abreviatura":"CAP","categoria_personal_id":`+cat+`,"orden":5}`), 10)
	persona := strconv.FormatInt(c.create(t, Personal, "datos-personales", `{"nombres":"Ana","apellidos":"Reyes","documento_identidad":"0801"}`), 10)

	out, err := c.handler(t, Personal, "perfiles-militares").Create(c.ctx, []byte(`{
		"datos_personales_id":`+persona+`,"numero_serie":"S-1",
		"categoria_personal_id":`+cat+`,"grado_actual_id":`+grado+`}`))
	require.NoError(t, err)

	perfil := out.(*models.PerfilMilitar)
	assert.Equal(t, models.EstadoPerfilActivo, perfil.Estado)
	assert.Equal(t, "CAP", embedded(t, perfil.GradoActual, "abreviatura"))
	assert.Equal(t, "Oficiales", embedded(t, perfil.CategoriaPersonal, "nombre"))
	assert.Nil(t, perfil.Especialidad)

	_, err = c.handler(t, Personal, "perfiles-militares").Create(c.ctx, []byte(`{
		"datos_personales_id":`+persona+`,"numero_serie":"S-2",
		"categoria_personal_id":`+cat+`,"grado_actual_id":424242}`))
	appErr := appError(t, err)
	assert.Contains(t, appErr.Fields["datos_personales_id"], "el valor ya está registrado")
	assert.Contains(t, appErr.Fields["grado_actual_id"], "la referencia no existe")

	err = c.handler(t, Catalogos, "grados").Delete(c.ctx, mustInt(t, grado))
	assert.Equal(t, http.StatusConflict, appError(t, err).Status)
}

func TestRemoteReferencesFailWithoutResolver(t *testing.T) {
	mod, err := Build(Organizacion, Env{Backend: MemoryBackend()})
	require.NoError(t, err)

	_, err = mod.Resources[0].Create(context.Background(), []byte(`{"nombre":"Cortés","codigo":"05","pais_id":1}`))
	assert.Contains(t, appError(t, err).Fields["pais_id"], "la referencia no existe")
}

func TestArchivoUUIDIsServerAssigned(t *testing.T) {
	c := newCluster(t)
	archivos := c.handler(t, Archivos, "archivos")

	out, err := archivos.Create(c.ctx, []byte(`{"uuid":"cliente","nombre":"acta.pdf","ruta":"/a/acta.pdf","tipo_mime":"application/pdf"}`))
	require.NoError(t, err)
	creado := out.(*models.Archivo)
	assert.NotEqual(t, "cliente", creado.Uuid)
	assert.Len(t, creado.Uuid, 36)

	out, err = archivos.Update(c.ctx, creado.Id, []byte(`{"uuid":"otro","nombre":"acta-v2.pdf","ruta":"/a/acta.pdf","tipo_mime":"application/pdf"}`))
	require.NoError(t, err)
	assert.Equal(t, creado.Uuid, out.(*models.Archivo).Uuid)
	assert.Equal(t, int64(2), out.(*models.Archivo).Version)
}

func TestRegistrosAccesoAreAppendOnly(t *testing.T) {
	c := newCluster(t)
	archivo := c.create(t, Archivos, "archivos", `{"nombre":"acta.pdf","ruta":"/a/acta.pdf","tipo_mime":"application/pdf"}`)
	registros := c.handler(t, Archivos, "registros-acceso")

	id := c.create(t, Archivos, "registros-acceso", `{"archivo_id":`+strconv.FormatInt(archivo, 10)+`,"accion":"ver","ip":"10.0.0.1"}`)

	_, err := registros.Update(c.ctx, id, []byte(`{"archivo_id":1,"accion":"VER"}`))
	assert.Equal(t, http.StatusForbidden, appError(t, err).Status)
	assert.Equal(t, http.StatusForbidden, appError(t, registros.Delete(c.ctx, id)).Status)

	err = c.handler(t, Archivos, "archivos").Delete(c.ctx, archivo)
	assert.Equal(t, http.StatusConflict, appError(t, err).Status)

	_, err = registros.Create(c.ctx, []byte(`{"archivo_id":999,"accion":"VER"}`))
	assert.Contains(t, appError(t, err).Fields["archivo_id"], "el registro referenciado no existe")
}

func embedded(t *testing.T, raw json.RawMessage, key string) string {
	t.Helper()
	require.NotNil(t, raw, "referencia sin embeber")
	return gjson.GetBytes(raw, key).String()
}

func mustInt(t *testing.T, s string) int64 {
	t.Helper()
	n, err := strconv.ParseInt(s, 10, 64)
	require.NoError(t, err)
	return n
}
