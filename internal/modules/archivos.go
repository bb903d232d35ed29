package modules

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/udistrital/microservicios_crud/internal/crud"
	"github.com/udistrital/microservicios_crud/internal/store"
	"github.com/udistrital/microservicios_crud/internal/validation"
	"github.com/udistrital/microservicios_crud/models"
)

var (
	tablaArchivos = store.Table{
		Name:    "archivos",
		Columns: []string{"uuid", "nombre", "ruta", "tipo_mime", "tamano_bytes", "hash_sha256"},
		Search:  []string{"nombre", "ruta"},
		OrderBy: "nombre",
	}
	tablaRegistrosAcceso = store.Table{
		Name:    "registros_acceso",
		Columns: []string{"archivo_id", "accion", "ip", "agente_usuario"},
		Search:  []string{"accion", "ip"},
		OrderBy: "id",
	}
)

func newArchivos(env Env) Module {
	deps := env.deps()

	archivos := repository[models.Archivo, *models.Archivo](env.Backend, tablaArchivos)
	registros := repository[models.RegistroAcceso, *models.RegistroAcceso](env.Backend, tablaRegistrosAcceso)

	return Module{
		Name: Archivos,
		Resources: []crud.Handler{
			crud.New[models.Archivo, *models.Archivo](crud.Definition[models.Archivo]{
				Resource: "archivos",
				Label:    "archivo",
				Filters: []crud.Filter{
					crud.Eq("uuid", crud.Text),
					crud.Eq("tipo_mime", crud.Text),
				},
				Children: []crud.Child{{Table: tablaRegistrosAcceso.Name, Column: "archivo_id", Label: "registros de acceso"}},
				// El uuid lo asigna el servidor y no cambia.
				BeforeCreate: func(_ context.Context, a *models.Archivo) error {
					a.Uuid = uuid.NewString()
					return nil
				},
				BeforeUpdate: func(_ context.Context, current, next *models.Archivo) error {
					next.Uuid = current.Uuid
					return nil
				},
			}, archivos, deps),

			crud.New[models.RegistroAcceso, *models.RegistroAcceso](crud.Definition[models.RegistroAcceso]{
				Resource:  "registros-acceso",
				Label:     "registro de acceso",
				Immutable: true,
				Rules: []validation.Rule{
					validation.LocalRef{Name: "archivo_id", Table: tablaArchivos.Name, DB: deps.DB},
				},
				Filters: []crud.Filter{
					crud.Eq("archivo_id", crud.Int),
					crud.Eq("accion", crud.Text),
				},
				Parents: []crud.Parent{{Route: "por-archivo", Column: "archivo_id"}},
				BeforeCreate: func(_ context.Context, r *models.RegistroAcceso) error {
					r.Accion = strings.ToUpper(strings.TrimSpace(r.Accion))
					return nil
				},
			}, registros, deps),
		},
	}
}
