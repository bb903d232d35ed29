package modules

import (
	"context"
	"fmt"

	"github.com/udistrital/microservicios_crud/internal/resolver"
)

// Recursos de otros servicios referenciados por id.
var (
	refPaises             = resolver.Ref{Service: Catalogos, Resource: "paises"}
	refTiposEstructura    = resolver.Ref{Service: Catalogos, Resource: "tipos-estructura"}
	refCategoriasPersonal = resolver.Ref{Service: Catalogos, Resource: "categorias-personal"}
	refGrados             = resolver.Ref{Service: Catalogos, Resource: "grados"}
	refEspecialidades     = resolver.Ref{Service: Catalogos, Resource: "especialidades"}

	refDepartamentos        = resolver.Ref{Service: Organizacion, Resource: "departamentos"}
	refEstructurasMilitares = resolver.Ref{Service: Organizacion, Resource: "estructuras-militares"}

	refDatosPersonales   = resolver.Ref{Service: Personal, Resource: "datos-personales"}
	refPerfilesMilitares = resolver.Ref{Service: Personal, Resource: "perfiles-militares"}
)

// unavailable responde como un servicio caído cuando no hay resolver configurado.
type unavailable struct{}

func (unavailable) Exists(_ context.Context, ref resolver.Ref, _ int64) (bool, error) {
	return false, fmt.Errorf("%w: %s", resolver.ErrUnavailable, ref)
}
