package errorhandler

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/udistrital/microservicios_crud/helpers"
	"github.com/udistrital/microservicios_crud/models/requestresponse"

	"github.com/beego/beego/v2/core/logs"
	beego "github.com/beego/beego/v2/server/web"
)

// ErrorHandlerController se registra en el router para gestionar 404 y otros fallos.
type ErrorHandlerController struct {
	beego.Controller
}

// Error404 centraliza la respuesta cuando la ruta no existe.
func (c *ErrorHandlerController) Error404() {
	message := fmt.Sprintf("no existe la ruta %s %s", c.Ctx.Request.Method, c.Ctx.Request.URL.Path)
	c.respond(http.StatusNotFound, message)
}

// Error405 responde cuando la ruta existe pero no admite el método.
func (c *ErrorHandlerController) Error405() {
	message := fmt.Sprintf("método %s no permitido en %s", c.Ctx.Request.Method, c.Ctx.Request.URL.Path)
	c.respond(http.StatusMethodNotAllowed, message)
}

// Error500 cubre los fallos que no pasaron por un controlador.
func (c *ErrorHandlerController) Error500() {
	c.respond(http.StatusInternalServerError, "error interno del servidor")
}

func (c *ErrorHandlerController) respond(status int, message string) {
	c.Ctx.Output.SetStatus(status)
	c.Data["json"] = requestresponse.NewError(message, kindFor(status), nil)
	_ = c.ServeJSON()
}

func kindFor(status int) string {
	switch status {
	case http.StatusNotFound:
		return helpers.KindNotFound
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	default:
		return helpers.KindInternal
	}
}

// HandlePanic captura pánicos en controladores y entrega una respuesta estándar. El
// detalle del pánico sólo va al log.
func HandlePanic(ctrl *beego.Controller) {
	if r := recover(); r != nil {
		logs.Error("panic method=%s url=%s err=%v\n%s", ctrl.Ctx.Request.Method, ctrl.Ctx.Request.URL, r, debug.Stack())

		status := http.StatusInternalServerError
		ctrl.Ctx.Output.SetStatus(status)
		ctrl.Data["json"] = requestresponse.NewError("error interno del servidor", helpers.KindInternal, nil)
		_ = ctrl.ServeJSON()
	}
}
