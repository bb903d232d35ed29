package modules

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/udistrital/microservicios_crud/helpers"
	"github.com/udistrital/microservicios_crud/internal/crud"
	"github.com/udistrital/microservicios_crud/internal/store"
	"github.com/udistrital/microservicios_crud/internal/validation"
	"github.com/udistrital/microservicios_crud/models"
)

// maxProfundidad limita la cadena de unidades padre y el árbol devuelto.
const maxProfundidad = 32

var (
	tablaDepartamentos = store.Table{
		Name:    "departamentos",
		Columns: []string{"nombre", "codigo", "pais_id"},
		Search:  []string{"nombre", "codigo"},
		OrderBy: "nombre",
	}
	tablaMunicipios = store.Table{
		Name:    "municipios",
		Columns: []string{"nombre", "codigo", "departamento_id"},
		Search:  []string{"nombre", "codigo"},
		OrderBy: "nombre",
	}
	tablaCiudades = store.Table{
		Name:    "ciudades",
		Columns: []string{"nombre", "codigo_postal", "municipio_id"},
		Search:  []string{"nombre", "codigo_postal"},
		OrderBy: "nombre",
	}
	tablaUbicaciones = store.Table{
		Name:    "ubicaciones_geograficas",
		Columns: []string{"nombre", "latitud", "longitud", "ciudad_id"},
		Search:  []string{"nombre"},
		OrderBy: "nombre",
	}
	tablaEstructuras = store.Table{
		Name:    "estructuras_militares",
		Columns: []string{"nombre", "codigo", "unidad_padre_id", "tipo_estructura_id", "ubicacion_geografica_id"},
		Search:  []string{"nombre", "codigo"},
		OrderBy: "nombre",
	}
)

func newOrganizacion(env Env) Module {
	deps := env.deps()
	remote := env.remote()

	departamentos := repository[models.Departamento, *models.Departamento](env.Backend, tablaDepartamentos)
	municipios := repository[models.Municipio, *models.Municipio](env.Backend, tablaMunicipios)
	ciudades := repository[models.Ciudad, *models.Ciudad](env.Backend, tablaCiudades)
	ubicaciones := repository[models.UbicacionGeografica, *models.UbicacionGeografica](env.Backend, tablaUbicaciones)
	estructurasRepo := repository[models.EstructuraMilitar, *models.EstructuraMilitar](env.Backend, tablaEstructuras)

	var estructuras *crud.Service[models.EstructuraMilitar, *models.EstructuraMilitar]
	estructuras = crud.New[models.EstructuraMilitar, *models.EstructuraMilitar](crud.Definition[models.EstructuraMilitar]{
		Resource: "estructuras-militares",
		Label:    "estructura militar",
		Rules: []validation.Rule{
			validation.Unique{Name: "codigo", Store: estructurasRepo},
			validation.LocalRef{Name: "unidad_padre_id", Table: tablaEstructuras.Name, DB: deps.DB},
			validation.LocalRef{Name: "ubicacion_geografica_id", Table: tablaUbicaciones.Name, DB: deps.DB},
			validation.RemoteRef{Name: "tipo_estructura_id", Ref: refTiposEstructura, Resolver: remote},
			validation.Func{Name: "unidad_padre_id", Fn: func(ctx context.Context, in validation.Input) (string, error) {
				return validarJerarquia(ctx, estructurasRepo, in)
			}},
		},
		Filters: []crud.Filter{
			crud.Eq("codigo", crud.Text),
			crud.Eq("unidad_padre_id", crud.Int),
			crud.Eq("tipo_estructura_id", crud.Int),
			crud.Eq("ubicacion_geografica_id", crud.Int),
		},
		Parents: []crud.Parent{
			{Route: "por-unidad", Column: "unidad_padre_id"},
			{Route: "por-tipo", Column: "tipo_estructura_id"},
		},
		Children: []crud.Child{{Table: tablaEstructuras.Name, Column: "unidad_padre_id", Label: "subunidades"}},
		RemoteChildren: []crud.RemoteChild{
			{Ref: refPerfilesMilitares, Column: "unidad_id", Label: "perfiles militares"},
		},
		Enrichments: []crud.Enrichment[models.EstructuraMilitar]{{
			Ref: refTiposEstructura,
			ID:  func(e *models.EstructuraMilitar) int64 { return e.TipoEstructuraId },
			Set: func(e *models.EstructuraMilitar, raw json.RawMessage) { e.TipoEstructura = raw },
		}},
		Actions: []crud.Action{{
			Name: "arbol",
			Fn: func(ctx context.Context, id int64) (interface{}, error) {
				return arbol(ctx, estructuras, id)
			},
		}},
	}, estructurasRepo, deps)

	return Module{
		Name: Organizacion,
		Resources: []crud.Handler{
			crud.New[models.Departamento, *models.Departamento](crud.Definition[models.Departamento]{
				Resource: "departamentos",
				Label:    "departamento",
				Rules: []validation.Rule{
					validation.Unique{Name: "codigo", Store: departamentos},
					validation.RemoteRef{Name: "pais_id", Ref: refPaises, Resolver: remote},
				},
				Filters:  []crud.Filter{crud.Eq("codigo", crud.Text), crud.Eq("pais_id", crud.Int)},
				Parents:  []crud.Parent{{Route: "por-pais", Column: "pais_id"}},
				Children: []crud.Child{{Table: tablaMunicipios.Name, Column: "departamento_id", Label: "municipios"}},
				Enrichments: []crud.Enrichment[models.Departamento]{{
					Ref: refPaises,
					ID:  func(d *models.Departamento) int64 { return d.PaisId },
					Set: func(d *models.Departamento, raw json.RawMessage) { d.Pais = raw },
				}},
			}, departamentos, deps),

			crud.New[models.Municipio, *models.Municipio](crud.Definition[models.Municipio]{
				Resource: "municipios",
				Label:    "municipio",
				Rules: []validation.Rule{
					validation.Unique{Name: "codigo", Store: municipios},
					validation.LocalRef{Name: "departamento_id", Table: tablaDepartamentos.Name, DB: deps.DB},
				},
				Filters:  []crud.Filter{crud.Eq("codigo", crud.Text), crud.Eq("departamento_id", crud.Int)},
				Parents:  []crud.Parent{{Route: "por-departamento", Column: "departamento_id"}},
				Children: []crud.Child{{Table: tablaCiudades.Name, Column: "municipio_id", Label: "ciudades"}},
			}, municipios, deps),

			crud.New[models.Ciudad, *models.Ciudad](crud.Definition[models.Ciudad]{
				Resource: "ciudades",
				Label:    "ciudad",
				Rules: []validation.Rule{
					validation.LocalRef{Name: "municipio_id", Table: tablaMunicipios.Name, DB: deps.DB},
				},
				Filters:  []crud.Filter{crud.Eq("municipio_id", crud.Int), crud.Eq("codigo_postal", crud.Text)},
				Parents:  []crud.Parent{{Route: "por-municipio", Column: "municipio_id"}},
				Children: []crud.Child{{Table: tablaUbicaciones.Name, Column: "ciudad_id", Label: "ubicaciones geográficas"}},
			}, ciudades, deps),

			crud.New[models.UbicacionGeografica, *models.UbicacionGeografica](crud.Definition[models.UbicacionGeografica]{
				Resource: "ubicaciones-geograficas",
				Label:    "ubicación geográfica",
				Rules: []validation.Rule{
					validation.LocalRef{Name: "ciudad_id", Table: tablaCiudades.Name, DB: deps.DB},
				},
				Filters:  []crud.Filter{crud.Eq("ciudad_id", crud.Int)},
				Parents:  []crud.Parent{{Route: "por-ciudad", Column: "ciudad_id"}},
				Children: []crud.Child{{Table: tablaEstructuras.Name, Column: "ubicacion_geografica_id", Label: "estructuras militares"}},
			}, ubicaciones, deps),

			estructuras,
		},
	}
}

// validarJerarquia recorre la cadena de padres propuesta: una unidad no puede quedar
// debajo de sí misma ni de una de sus subunidades.
func validarJerarquia(ctx context.Context, repo store.Repository[models.EstructuraMilitar], in validation.Input) (string, error) {
	rec, ok := in.Record.(*models.EstructuraMilitar)
	if !ok || rec.UnidadPadreId == nil {
		return "", nil
	}
	parent := *rec.UnidadPadreId
	if in.ID > 0 && parent == in.ID {
		return "una unidad no puede ser su propia unidad padre", nil
	}

	for depth := 1; parent > 0; depth++ {
		if depth > maxProfundidad {
			return "la jerarquía de unidades es demasiado profunda", nil
		}
		node, err := repo.Get(ctx, parent)
		if errors.Is(err, store.ErrNotFound) {
			// LocalRef ya reporta el padre inexistente.
			return "", nil
		}
		if err != nil {
			return "", err
		}
		if node.UnidadPadreId == nil {
			return "", nil
		}
		parent = *node.UnidadPadreId
		if in.ID > 0 && parent == in.ID {
			return "la unidad padre no puede ser una de sus subunidades", nil
		}
	}
	return "", nil
}

// arbol arma la unidad id con todas sus subunidades activas, nivel por nivel.
func arbol(ctx context.Context, svc *crud.Service[models.EstructuraMilitar, *models.EstructuraMilitar], id int64) (*models.NodoEstructura, error) {
	repo := svc.Repository()
	root, err := repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, helpers.NotFound(fmt.Sprintf("no existe un registro de estructura militar con id %d", id))
		}
		return nil, helpers.Internal(err)
	}

	raiz := &models.NodoEstructura{EstructuraMilitar: *root, Subunidades: []*models.NodoEstructura{}}
	todos := []*models.EstructuraMilitar{&raiz.EstructuraMilitar}
	visitados := map[int64]bool{root.Id: true}
	nivel := map[int64]*models.NodoEstructura{root.Id: raiz}

	for depth := 1; depth <= maxProfundidad && len(nivel) > 0; depth++ {
		ids := make([]int64, 0, len(nivel))
		for nid := range nivel {
			ids = append(ids, nid)
		}
		hijos, _, err := repo.List(ctx, store.Query{
			Filters: []store.Filter{{Column: "unidad_padre_id", Op: store.OpIn, Value: ids}},
		})
		if err != nil {
			return nil, helpers.Internal(err)
		}

		siguiente := map[int64]*models.NodoEstructura{}
		for i := range hijos {
			hijo := hijos[i]
			if visitados[hijo.Id] || hijo.UnidadPadreId == nil {
				continue
			}
			padre, ok := nivel[*hijo.UnidadPadreId]
			if !ok {
				continue
			}
			visitados[hijo.Id] = true
			nodo := &models.NodoEstructura{EstructuraMilitar: hijo, Subunidades: []*models.NodoEstructura{}}
			padre.Subunidades = append(padre.Subunidades, nodo)
			siguiente[hijo.Id] = nodo
			todos = append(todos, &nodo.EstructuraMilitar)
		}
		nivel = siguiente
	}

	svc.Enrich(ctx, todos)
	return raiz, nil
}
