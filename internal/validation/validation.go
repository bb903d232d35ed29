// Package validation revisa los cuerpos de las peticiones: reglas declarativas por
// etiqueta validate y reglas que consultan el almacenamiento o a otros servicios.
package validation

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"
)

// Errors acumula los mensajes por campo (nombre JSON).
type Errors map[string][]string

// Add agrega un mensaje al campo.
func (e Errors) Add(field, message string) {
	e[field] = append(e[field], message)
}

// Has informa si el campo ya tiene errores.
func (e Errors) Has(field string) bool {
	return len(e[field]) > 0
}

// Validator envuelve validator/v10 con nombres de campo JSON y mensajes en español.
type Validator struct {
	v *validator.Validate
}

// New crea un Validator listo para usar de forma concurrente.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return &Validator{v: v}
}

// Struct aplica las etiquetas validate de rec. El error sólo es distinto de nil si
// rec no es un struct.
func (val *Validator) Struct(rec interface{}) (Errors, error) {
	out := Errors{}
	err := val.v.Struct(rec)
	if err == nil {
		return out, nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return nil, err
	}
	for _, fe := range fieldErrs {
		out.Add(fe.Field(), message(fe))
	}
	return out, nil
}

// Check aplica las etiquetas y luego las reglas. Las reglas de un campo que ya
// falló por etiqueta no se evalúan. id es 0 al crear.
func (val *Validator) Check(ctx context.Context, rec interface{}, id int64, rules []Rule) (Errors, error) {
	errs, err := val.Struct(rec)
	if err != nil {
		return nil, err
	}

	pending := make([]Rule, 0, len(rules))
	for _, rule := range rules {
		if !errs.Has(rule.Field()) {
			pending = append(pending, rule)
		}
	}
	if len(pending) == 0 {
		return errs, nil
	}

	// Cada regla escribe en su propia posición para conservar el orden declarado.
	messages := make([]string, len(pending))
	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex
	for i, rule := range pending {
		i, rule := i, rule
		g.Go(func() error {
			msg, err := rule.Check(gctx, Input{Record: rec, ID: id})
			if err != nil {
				return fmt.Errorf("regla %s: %w", rule.Field(), err)
			}
			mu.Lock()
			messages[i] = msg
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for i, msg := range messages {
		if msg != "" {
			errs.Add(pending[i].Field(), msg)
		}
	}
	return errs, nil
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "el campo es obligatorio"
	case "max":
		if isText(fe) {
			return fmt.Sprintf("no debe superar %s caracteres", fe.Param())
		}
		return fmt.Sprintf("debe ser menor o igual a %s", fe.Param())
	case "min":
		if isText(fe) {
			return fmt.Sprintf("debe tener al menos %s caracteres", fe.Param())
		}
		return fmt.Sprintf("debe ser mayor o igual a %s", fe.Param())
	case "len":
		return fmt.Sprintf("debe tener exactamente %s caracteres", fe.Param())
	case "gt":
		return fmt.Sprintf("debe ser mayor que %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("debe ser uno de: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "email":
		return "debe ser un correo electrónico válido"
	case "ip":
		return "debe ser una dirección IP válida"
	case "alpha":
		return "sólo admite letras"
	case "hexadecimal":
		return "debe ser hexadecimal"
	default:
		return fmt.Sprintf("no cumple la regla %s", fe.Tag())
	}
}

func isText(fe validator.FieldError) bool {
	k := fe.Kind()
	if k == reflect.Ptr {
		k = fe.Type().Elem().Kind()
	}
	return k == reflect.String
}
