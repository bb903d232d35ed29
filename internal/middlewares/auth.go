package middlewares

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/beego/beego/v2/core/logs"
	beego "github.com/beego/beego/v2/server/web"
	"github.com/beego/beego/v2/server/web/context"
	"github.com/google/uuid"

	"github.com/udistrital/microservicios_crud/helpers"
	internalhelpers "github.com/udistrital/microservicios_crud/internal/helpers"
	"github.com/udistrital/microservicios_crud/internal/resolver"
	"github.com/udistrital/microservicios_crud/models/requestresponse"
)

// Options configura el filtro de contexto de petición.
type Options struct {
	// JWTSecret vacío lee los claims sin verificar la firma.
	JWTSecret string
	// AuthRequired rechaza con 401 las escrituras anónimas.
	AuthRequired bool
	// Budget es el tiempo total para las consultas a otros servicios de una petición.
	Budget time.Duration
}

// RequestContext deja en el context.Context de la petición el principal, el id de
// correlación y el presupuesto del resolver.
func RequestContext(opts Options) beego.FilterFunc {
	return func(ctx *context.Context) {
		correlation := strings.TrimSpace(ctx.Input.Header(internalhelpers.HeaderCorrelationID))
		if correlation == "" {
			correlation = uuid.NewString()
		}
		ctx.Output.Header(internalhelpers.HeaderCorrelationID, correlation)

		principal := internalhelpers.Principal{CorrelationID: correlation}
		header := ctx.Input.Header(internalhelpers.HeaderAuthorization)
		token, err := internalhelpers.ParseBearer(header)
		switch {
		case errors.Is(err, internalhelpers.ErrNoAuthHeader):
		case err != nil:
			reject(ctx, "el header Authorization debe tener el formato Bearer <token>")
			return
		default:
			claims, err := internalhelpers.Claims(token, opts.JWTSecret)
			if err != nil {
				logs.Warn("token rechazado correlation=%s err=%v", correlation, err)
				reject(ctx, "token inválido")
				return
			}
			principal.Authorization = header
			if id, err := internalhelpers.UserID(claims); err == nil {
				principal.UserID = &id
			} else {
				logs.Debug("token sin usuario numérico correlation=%s err=%v", correlation, err)
			}
		}

		if opts.AuthRequired && principal.Anonymous() && isWrite(ctx.Input.Method()) {
			reject(ctx, "se requiere un usuario autenticado")
			return
		}

		reqCtx := internalhelpers.WithPrincipal(ctx.Request.Context(), principal)
		ctx.Request = ctx.Request.WithContext(resolver.WithBudget(reqCtx, opts.Budget))
	}
}

func isWrite(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func reject(ctx *context.Context, message string) {
	ctx.Output.SetStatus(http.StatusUnauthorized)
	_ = ctx.Output.JSON(requestresponse.NewError(message, helpers.KindUnauthorized, nil), false, false)
}
