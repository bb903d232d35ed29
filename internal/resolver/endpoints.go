package resolver

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownService indica que no hay dirección configurada para el servicio.
var ErrUnknownService = errors.New("servicio sin dirección configurada")

// Endpoints resuelve la URL base de un servicio hermano.
type Endpoints interface {
	BaseURL(service string) (string, error)
}

// StaticEndpoints asigna a cada servicio una URL base fija tomada de la configuración.
type StaticEndpoints map[string]string

func (e StaticEndpoints) BaseURL(service string) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(e[service]), "/")
	if base == "" {
		return "", fmt.Errorf("%w: %s", ErrUnknownService, service)
	}
	return base, nil
}

// Ref nombra un recurso de otro servicio, por ejemplo {catalogos, paises}.
type Ref struct {
	Service  string
	Resource string
}

func (r Ref) String() string {
	return r.Service + "/" + r.Resource
}

func (r Ref) collectionURL(base string) string {
	return base + "/api/" + r.Service + "/" + r.Resource
}

func (r Ref) itemURL(base string, id int64) string {
	return fmt.Sprintf("%s/%d", r.collectionURL(base), id)
}
