package controllers

import (
	"bytes"
	"io"
	"net/http"

	"github.com/udistrital/microservicios_crud/helpers"
	"github.com/udistrital/microservicios_crud/models/requestresponse"

	"github.com/beego/beego/v2/core/logs"
	beego "github.com/beego/beego/v2/server/web"
)

// BaseController centraliza la construcción de respuestas estándar.
type BaseController struct {
	beego.Controller
}

// RespondSuccess envuelve un payload en el formato estándar.
func (c *BaseController) RespondSuccess(status int, message string, data interface{}) {
	c.Ctx.Output.SetStatus(status)
	c.Data["json"] = requestresponse.NewSuccess(message, data)
	_ = c.ServeJSON()
}

// RespondError transforma cualquier error en la respuesta estándar. El detalle de los
// errores internos sólo va al log.
func (c *BaseController) RespondError(err error) {
	appErr := helpers.AsAppError(err, "error inesperado")
	if appErr.Status >= http.StatusInternalServerError {
		logs.Error("method=%s path=%s err=%v", c.Ctx.Request.Method, c.Ctx.Request.URL.Path, err)
	}
	c.Ctx.Output.SetStatus(appErr.Status)
	c.Data["json"] = requestresponse.NewError(appErr.Message, appErr.Kind, appErr.Fields)
	_ = c.ServeJSON()
}

// RequestBody devuelve el cuerpo de la petición aunque CopyRequestBody esté apagado.
func (c *BaseController) RequestBody() ([]byte, error) {
	raw := c.Ctx.Input.RequestBody

	if len(raw) == 0 && c.Ctx.Request != nil && c.Ctx.Request.Body != nil {
		b, err := io.ReadAll(c.Ctx.Request.Body)
		if err != nil {
			return nil, err
		}
		raw = b

		// cache + reinyectar
		c.Ctx.Input.RequestBody = b
		c.Ctx.Request.Body = io.NopCloser(bytes.NewBuffer(b))
	}
	return raw, nil
}
