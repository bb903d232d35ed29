package controllers

import (
	"context"
	"net/http"

	"github.com/udistrital/microservicios_crud/controllers/errorhandler"
	"github.com/udistrital/microservicios_crud/helpers"
	"github.com/udistrital/microservicios_crud/internal/crud"
	internalhelpers "github.com/udistrital/microservicios_crud/internal/helpers"
)

// ResourceController publica un recurso CRUD. Beego copia Resource y Route en cada
// instancia por petición, así que un mismo tipo sirve a todos los recursos.
type ResourceController struct {
	BaseController
	Resource crud.Handler
	// Route es la ruta por-<padre> o el nombre de la acción de este registro.
	Route string
}

func (c *ResourceController) context() context.Context {
	return c.Ctx.Request.Context()
}

func (c *ResourceController) id() (int64, bool) {
	id, err := internalhelpers.ParamInt(c.Ctx, ":id")
	if err != nil {
		c.RespondError(helpers.BadRequest(err.Error()))
		return 0, false
	}
	return id, true
}

// List
// @Summary Listar registros activos
// @Description Filtros por columna, ids=1,2,3, q= y paginación con page/per_page.
// @Success 200 {object} requestresponse.APIResponseDTO
// @Failure 400 {object} requestresponse.APIResponseDTO
func (c *ResourceController) List() {
	defer errorhandler.HandlePanic(&c.Controller)

	data, err := c.Resource.List(c.context(), c.Ctx.Request.URL.Query())
	if err != nil {
		c.RespondError(err)
		return
	}
	c.RespondSuccess(http.StatusOK, "consulta exitosa", data)
}

// Search
// @Summary Buscar por texto
// @Description q con menos de 2 caracteres devuelve una lista vacía.
// @Success 200 {object} requestresponse.APIResponseDTO
func (c *ResourceController) Search() {
	defer errorhandler.HandlePanic(&c.Controller)

	data, err := c.Resource.Search(c.context(), c.Ctx.Request.URL.Query())
	if err != nil {
		c.RespondError(err)
		return
	}
	c.RespondSuccess(http.StatusOK, "consulta exitosa", data)
}

// ByParent lista los registros de un padre: GET .../por-<padre>/:id
func (c *ResourceController) ByParent() {
	defer errorhandler.HandlePanic(&c.Controller)

	parentID, ok := c.id()
	if !ok {
		return
	}
	data, err := c.Resource.ByParent(c.context(), c.Route, parentID, c.Ctx.Request.URL.Query())
	if err != nil {
		c.RespondError(err)
		return
	}
	c.RespondSuccess(http.StatusOK, "consulta exitosa", data)
}

// Get
// @Summary Consultar un registro
// @Success 200 {object} requestresponse.APIResponseDTO
// @Failure 404 {object} requestresponse.APIResponseDTO
func (c *ResourceController) Get() {
	defer errorhandler.HandlePanic(&c.Controller)

	id, ok := c.id()
	if !ok {
		return
	}
	data, err := c.Resource.Get(c.context(), id)
	if err != nil {
		c.RespondError(err)
		return
	}
	c.RespondSuccess(http.StatusOK, "consulta exitosa", data)
}

// Create
// @Summary Crear un registro
// @Success 201 {object} requestresponse.APIResponseDTO
// @Failure 400 {object} requestresponse.APIResponseDTO
func (c *ResourceController) Create() {
	defer errorhandler.HandlePanic(&c.Controller)

	body, err := c.RequestBody()
	if err != nil {
		c.RespondError(helpers.BadRequest("no fue posible leer el cuerpo de la petición"))
		return
	}
	data, err := c.Resource.Create(c.context(), body)
	if err != nil {
		c.RespondError(err)
		return
	}
	c.RespondSuccess(http.StatusCreated, "registro creado", data)
}

// Update
// @Summary Actualizar un registro
// @Description Con "version" en el cuerpo sólo actualiza si coincide con la almacenada.
// @Success 200 {object} requestresponse.APIResponseDTO
// @Failure 409 {object} requestresponse.APIResponseDTO
func (c *ResourceController) Update() {
	defer errorhandler.HandlePanic(&c.Controller)

	id, ok := c.id()
	if !ok {
		return
	}
	body, err := c.RequestBody()
	if err != nil {
		c.RespondError(helpers.BadRequest("no fue posible leer el cuerpo de la petición"))
		return
	}
	data, err := c.Resource.Update(c.context(), id, body)
	if err != nil {
		c.RespondError(err)
		return
	}
	c.RespondSuccess(http.StatusOK, "registro actualizado", data)
}

// Delete
// @Summary Eliminar (borrado lógico)
// @Success 200 {object} requestresponse.APIResponseDTO
// @Failure 409 {object} requestresponse.APIResponseDTO
func (c *ResourceController) Delete() {
	defer errorhandler.HandlePanic(&c.Controller)

	id, ok := c.id()
	if !ok {
		return
	}
	if err := c.Resource.Delete(c.context(), id); err != nil {
		c.RespondError(err)
		return
	}
	c.RespondSuccess(http.StatusOK, "registro eliminado", nil)
}

// Action ejecuta la acción Route sobre el registro: GET .../:id/<accion>
func (c *ResourceController) Action() {
	defer errorhandler.HandlePanic(&c.Controller)

	id, ok := c.id()
	if !ok {
		return
	}
	data, err := c.Resource.Action(c.context(), c.Route, id)
	if err != nil {
		c.RespondError(err)
		return
	}
	c.RespondSuccess(http.StatusOK, "consulta exitosa", data)
}
