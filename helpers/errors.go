package helpers

import (
	"errors"
	"fmt"
	"net/http"
)

// Tipos de error expuestos en el campo "error" del sobre de respuesta.
const (
	KindValidation   = "validation"
	KindNotFound     = "not_found"
	KindConflict     = "conflict"
	KindForbidden    = "forbidden"
	KindUnauthorized = "unauthorized"
	KindInternal     = "internal"
)

// AppError representa un error controlado con código HTTP y mensaje funcional.
type AppError struct {
	Status  int
	Kind    string
	Message string
	Fields  map[string][]string
	Err     error
}

// Error implementa la interfaz error.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap permite extraer el error original cuando exista.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError construye un AppError con mensaje y status.
func NewAppError(status int, message string, err error) *AppError {
	return &AppError{Status: status, Kind: kindFor(status), Message: message, Err: err}
}

// Validation construye un error 400 con los mensajes por campo.
func Validation(fields map[string][]string) *AppError {
	return &AppError{
		Status:  http.StatusBadRequest,
		Kind:    KindValidation,
		Message: "los datos enviados no son válidos",
		Fields:  fields,
	}
}

// FieldError es un atajo para un error de validación sobre un solo campo.
func FieldError(field, message string) *AppError {
	return Validation(map[string][]string{field: {message}})
}

func BadRequest(message string) *AppError {
	return NewAppError(http.StatusBadRequest, message, nil)
}

func NotFound(message string) *AppError {
	return NewAppError(http.StatusNotFound, message, nil)
}

func Conflict(message string, err error) *AppError {
	return NewAppError(http.StatusConflict, message, err)
}

func Forbidden(message string) *AppError {
	return NewAppError(http.StatusForbidden, message, nil)
}

func Unauthorized(message string) *AppError {
	return NewAppError(http.StatusUnauthorized, message, nil)
}

// Internal oculta el detalle técnico: el error original sólo queda en Err para el log.
func Internal(err error) *AppError {
	return NewAppError(http.StatusInternalServerError, "error interno del servidor", err)
}

// AsAppError convierte cualquier error en AppError con status 500 por defecto.
func AsAppError(err error, defaultMessage string) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		if appErr.Kind == "" {
			appErr.Kind = kindFor(appErr.Status)
		}
		return appErr
	}
	msg := defaultMessage
	if msg == "" {
		msg = "error inesperado"
	}
	return &AppError{Status: http.StatusInternalServerError, Kind: KindInternal, Message: msg, Err: err}
}

func kindFor(status int) string {
	switch status {
	case http.StatusBadRequest:
		return KindValidation
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusConflict:
		return KindConflict
	case http.StatusForbidden:
		return KindForbidden
	case http.StatusUnauthorized:
		return KindUnauthorized
	default:
		return KindInternal
	}
}
