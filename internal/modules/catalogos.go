package modules

import (
	"context"
	"strings"

	"github.com/udistrital/microservicios_crud/internal/crud"
	"github.com/udistrital/microservicios_crud/internal/store"
	"github.com/udistrital/microservicios_crud/internal/validation"
	"github.com/udistrital/microservicios_crud/models"
)

var (
	tablaPaises = store.Table{
		Name:    "paises",
		Columns: []string{"nombre", "codigo_iso2", "codigo_iso3", "codigo_telefonico"},
		Search:  []string{"nombre", "codigo_iso3"},
		OrderBy: "nombre",
	}
	tablaTiposEstructura = store.Table{
		Name:    "tipos_estructura",
		Columns: []string{"nombre", "nivel", "descripcion"},
		Search:  []string{"nombre"},
		OrderBy: "nivel",
	}
	tablaCategoriasPersonal = store.Table{
		Name:    "categorias_personal",
		Columns: []string{"nombre", "codigo"},
		Search:  []string{"nombre", "codigo"},
		OrderBy: "nombre",
	}
	tablaGrados = store.Table{
		Name:    "grados",
		Columns: []string{"nombre", "abreviatura", "categoria_personal_id", "orden"},
		Search:  []string{"nombre", "abreviatura"},
		OrderBy: "orden",
	}
	tablaEspecialidades = store.Table{
		Name:    "especialidades",
		Columns: []string{"nombre", "codigo"},
		Search:  []string{"nombre", "codigo"},
		OrderBy: "nombre",
	}
	tablaPermisos = store.Table{
		Name:    "permisos",
		Columns: []string{"nombre", "clave", "descripcion"},
		Search:  []string{"nombre", "clave"},
		OrderBy: "clave",
	}
)

func newCatalogos(env Env) Module {
	deps := env.deps()

	paises := repository[models.Pais, *models.Pais](env.Backend, tablaPaises)
	tipos := repository[models.TipoEstructura, *models.TipoEstructura](env.Backend, tablaTiposEstructura)
	categorias := repository[models.CategoriaPersonal, *models.CategoriaPersonal](env.Backend, tablaCategoriasPersonal)
	grados := repository[models.Grado, *models.Grado](env.Backend, tablaGrados)
	especialidades := repository[models.Especialidad, *models.Especialidad](env.Backend, tablaEspecialidades)
	permisos := repository[models.Permiso, *models.Permiso](env.Backend, tablaPermisos)

	normalizarPais := func(p *models.Pais) {
		p.CodigoIso3 = strings.ToUpper(strings.TrimSpace(p.CodigoIso3))
		if p.CodigoIso2 = opcional(p.CodigoIso2); p.CodigoIso2 != nil {
			iso2 := strings.ToUpper(*p.CodigoIso2)
			p.CodigoIso2 = &iso2
		}
	}

	return Module{
		Name: Catalogos,
		Resources: []crud.Handler{
			crud.New[models.Pais, *models.Pais](crud.Definition[models.Pais]{
				Resource: "paises",
				Label:    "país",
				Rules: []validation.Rule{
					validation.Unique{Name: "nombre", Store: paises},
					validation.Unique{Name: "codigo_iso2", Store: paises},
					validation.Unique{Name: "codigo_iso3", Store: paises},
				},
				Filters: []crud.Filter{crud.Eq("codigo_iso2", crud.Text), crud.Eq("codigo_iso3", crud.Text)},
				RemoteChildren: []crud.RemoteChild{
					{Ref: refDepartamentos, Column: "pais_id", Label: "departamentos"},
					{Ref: refDatosPersonales, Column: "pais_nacimiento_id", Label: "personas"},
				},
				BeforeCreate: func(_ context.Context, p *models.Pais) error {
					normalizarPais(p)
					return nil
				},
				BeforeUpdate: func(_ context.Context, _, p *models.Pais) error {
					normalizarPais(p)
					return nil
				},
			}, paises, deps),

			crud.New[models.TipoEstructura, *models.TipoEstructura](crud.Definition[models.TipoEstructura]{
				Resource: "tipos-estructura",
				Label:    "tipo de estructura",
				Rules:    []validation.Rule{validation.Unique{Name: "nombre", Store: tipos}},
				Filters:  append([]crud.Filter{crud.Eq("nivel", crud.Int)}, crud.Range("nivel")...),
				RemoteChildren: []crud.RemoteChild{
					{Ref: refEstructurasMilitares, Column: "tipo_estructura_id", Label: "estructuras militares"},
				},
			}, tipos, deps),

			crud.New[models.CategoriaPersonal, *models.CategoriaPersonal](crud.Definition[models.CategoriaPersonal]{
				Resource: "categorias-personal",
				Label:    "categoría de personal",
				Rules: []validation.Rule{
					validation.Unique{Name: "nombre", Store: categorias},
					validation.Unique{Name: "codigo", Store: categorias},
				},
				Filters:  []crud.Filter{crud.Eq("codigo", crud.Text)},
				Children: []crud.Child{{Table: tablaGrados.Name, Column: "categoria_personal_id", Label: "grados"}},
				RemoteChildren: []crud.RemoteChild{
					{Ref: refPerfilesMilitares, Column: "categoria_personal_id", Label: "perfiles militares"},
				},
			}, categorias, deps),

			crud.New[models.Grado, *models.Grado](crud.Definition[models.Grado]{
				Resource: "grados",
				Label:    "grado",
				Rules: []validation.Rule{
					validation.Unique{Name: "abreviatura", Store: grados},
					validation.LocalRef{Name: "categoria_personal_id", Table: tablaCategoriasPersonal.Name, DB: deps.DB},
				},
				Filters: []crud.Filter{crud.Eq("categoria_personal_id", crud.Int)},
				Parents: []crud.Parent{{Route: "por-categoria", Column: "categoria_personal_id"}},
				RemoteChildren: []crud.RemoteChild{
					{Ref: refPerfilesMilitares, Column: "grado_actual_id", Label: "perfiles militares"},
				},
			}, grados, deps),

			crud.New[models.Especialidad, *models.Especialidad](crud.Definition[models.Especialidad]{
				Resource: "especialidades",
				Label:    "especialidad",
				Rules: []validation.Rule{
					validation.Unique{Name: "nombre", Store: especialidades},
					validation.Unique{Name: "codigo", Store: especialidades},
				},
				Filters: []crud.Filter{crud.Eq("codigo", crud.Text)},
				RemoteChildren: []crud.RemoteChild{
					{Ref: refPerfilesMilitares, Column: "especialidad_id", Label: "perfiles militares"},
				},
				BeforeCreate: func(_ context.Context, e *models.Especialidad) error {
					e.Codigo = opcional(e.Codigo)
					return nil
				},
				BeforeUpdate: func(_ context.Context, _, e *models.Especialidad) error {
					e.Codigo = opcional(e.Codigo)
					return nil
				},
			}, especialidades, deps),

			crud.New[models.Permiso, *models.Permiso](crud.Definition[models.Permiso]{
				Resource: "permisos",
				Label:    "permiso",
				Rules:    []validation.Rule{validation.Unique{Name: "clave", Store: permisos}},
				Filters:  []crud.Filter{crud.Eq("clave", crud.Text)},
			}, permisos, deps),
		},
	}
}

// opcional recorta un código anulable; vacío se guarda como NULL para no chocar con
// los índices únicos parciales.
func opcional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
