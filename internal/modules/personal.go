package modules

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/udistrital/microservicios_crud/internal/crud"
	"github.com/udistrital/microservicios_crud/internal/store"
	"github.com/udistrital/microservicios_crud/internal/validation"
	"github.com/udistrital/microservicios_crud/models"
)

var (
	tablaDatosPersonales = store.Table{
		Name: "datos_personales",
		Columns: []string{
			"nombres", "apellidos", "documento_identidad", "fecha_nacimiento",
			"sexo", "correo", "telefono", "pais_nacimiento_id",
		},
		Search:  []string{"nombres", "apellidos", "documento_identidad"},
		OrderBy: "apellidos",
	}
	tablaPerfilesMilitares = store.Table{
		Name: "perfiles_militares",
		Columns: []string{
			"datos_personales_id", "numero_serie", "categoria_personal_id", "grado_actual_id",
			"especialidad_id", "unidad_id", "fecha_ingreso", "estado",
		},
		Search:  []string{"numero_serie"},
		OrderBy: "numero_serie",
	}
)

func newPersonal(env Env) Module {
	deps := env.deps()
	remote := env.remote()

	datos := repository[models.DatosPersonales, *models.DatosPersonales](env.Backend, tablaDatosPersonales)
	perfiles := repository[models.PerfilMilitar, *models.PerfilMilitar](env.Backend, tablaPerfilesMilitares)

	normalizarPerfil := func(p *models.PerfilMilitar) {
		p.Estado = strings.ToUpper(strings.TrimSpace(p.Estado))
		if p.Estado == "" {
			p.Estado = models.EstadoPerfilActivo
		}
	}

	return Module{
		Name: Personal,
		Resources: []crud.Handler{
			crud.New[models.DatosPersonales, *models.DatosPersonales](crud.Definition[models.DatosPersonales]{
				Resource: "datos-personales",
				Label:    "datos personales",
				Rules: []validation.Rule{
					validation.Unique{Name: "documento_identidad", Store: datos},
					validation.RemoteRef{Name: "pais_nacimiento_id", Ref: refPaises, Resolver: remote},
				},
				Filters: []crud.Filter{
					crud.Eq("documento_identidad", crud.Text),
					crud.Eq("pais_nacimiento_id", crud.Int),
					crud.Eq("sexo", crud.Text),
				},
				Parents:  []crud.Parent{{Route: "por-pais", Column: "pais_nacimiento_id"}},
				Children: []crud.Child{{Table: tablaPerfilesMilitares.Name, Column: "datos_personales_id", Label: "perfiles militares"}},
				Enrichments: []crud.Enrichment[models.DatosPersonales]{{
					Ref: refPaises,
					ID:  func(d *models.DatosPersonales) int64 { return crud.Ptr64(d.PaisNacimientoId) },
					Set: func(d *models.DatosPersonales, raw json.RawMessage) { d.PaisNacimiento = raw },
				}},
			}, datos, deps),

			crud.New[models.PerfilMilitar, *models.PerfilMilitar](crud.Definition[models.PerfilMilitar]{
				Resource: "perfiles-militares",
				Label:    "perfil militar",
				Rules: []validation.Rule{
					validation.Unique{Name: "datos_personales_id", Store: perfiles},
					validation.Unique{Name: "numero_serie", Store: perfiles},
					validation.LocalRef{Name: "datos_personales_id", Table: tablaDatosPersonales.Name, DB: deps.DB},
					validation.RemoteRef{Name: "categoria_personal_id", Ref: refCategoriasPersonal, Resolver: remote},
					validation.RemoteRef{Name: "grado_actual_id", Ref: refGrados, Resolver: remote},
					validation.RemoteRef{Name: "especialidad_id", Ref: refEspecialidades, Resolver: remote},
					validation.RemoteRef{Name: "unidad_id", Ref: refEstructurasMilitares, Resolver: remote},
				},
				Filters: []crud.Filter{
					crud.Eq("numero_serie", crud.Text),
					crud.Eq("estado", crud.Text),
					crud.Eq("datos_personales_id", crud.Int),
					crud.Eq("categoria_personal_id", crud.Int),
					crud.Eq("grado_actual_id", crud.Int),
					crud.Eq("especialidad_id", crud.Int),
					crud.Eq("unidad_id", crud.Int),
				},
				Parents: []crud.Parent{
					{Route: "por-unidad", Column: "unidad_id"},
					{Route: "por-persona", Column: "datos_personales_id"},
					{Route: "por-grado", Column: "grado_actual_id"},
				},
				Enrichments: []crud.Enrichment[models.PerfilMilitar]{
					{
						Ref: refCategoriasPersonal,
						ID:  func(p *models.PerfilMilitar) int64 { return p.CategoriaPersonalId },
						Set: func(p *models.PerfilMilitar, raw json.RawMessage) { p.CategoriaPersonal = raw },
					},
					{
						Ref: refGrados,
						ID:  func(p *models.PerfilMilitar) int64 { return p.GradoActualId },
						Set: func(p *models.PerfilMilitar, raw json.RawMessage) { p.GradoActual = raw },
					},
					{
						Ref: refEspecialidades,
						ID:  func(p *models.PerfilMilitar) int64 { return crud.Ptr64(p.EspecialidadId) },
						Set: func(p *models.PerfilMilitar, raw json.RawMessage) { p.Especialidad = raw },
					},
					{
						Ref: refEstructurasMilitares,
						ID:  func(p *models.PerfilMilitar) int64 { return crud.Ptr64(p.UnidadId) },
						Set: func(p *models.PerfilMilitar, raw json.RawMessage) { p.Unidad = raw },
					},
				},
				BeforeCreate: func(_ context.Context, p *models.PerfilMilitar) error {
					normalizarPerfil(p)
					return nil
				},
				BeforeUpdate: func(_ context.Context, _, p *models.PerfilMilitar) error {
					normalizarPerfil(p)
					return nil
				},
			}, perfiles, deps),
		},
	}
}
