package models

import "encoding/json"

// Estados posibles de un perfil militar.
const (
	EstadoPerfilActivo   = "ACTIVO"
	EstadoPerfilRetirado = "RETIRADO"
	EstadoPerfilBaja     = "BAJA"
)

type DatosPersonales struct {
	Auditoria
	Nombres            string  `db:"nombres" json:"nombres" validate:"required,max=100"`
	Apellidos          string  `db:"apellidos" json:"apellidos" validate:"required,max=100"`
	DocumentoIdentidad string  `db:"documento_identidad" json:"documento_identidad" validate:"required,max=30"`
	FechaNacimiento    *Fecha  `db:"fecha_nacimiento" json:"fecha_nacimiento"`
	Sexo               *string `db:"sexo" json:"sexo" validate:"omitempty,oneof=M F"`
	Correo             *string `db:"correo" json:"correo" validate:"omitempty,email,max=150"`
	Telefono           *string `db:"telefono" json:"telefono" validate:"omitempty,max=30"`
	PaisNacimientoId   *int64  `db:"pais_nacimiento_id" json:"pais_nacimiento_id" validate:"omitempty,gt=0"`

	PaisNacimiento json.RawMessage `db:"-" json:"pais_nacimiento"`
}

// PerfilMilitar es el perfil uno a uno de unos datos personales. Las categorías,
// grados, especialidades y unidades pertenecen a otros servicios.
type PerfilMilitar struct {
	Auditoria
	DatosPersonalesId   int64  `db:"datos_personales_id" json:"datos_personales_id" validate:"required,gt=0"`
	NumeroSerie         string `db:"numero_serie" json:"numero_serie" validate:"required,max=30"`
	CategoriaPersonalId int64  `db:"categoria_personal_id" json:"categoria_personal_id" validate:"required,gt=0"`
	GradoActualId       int64  `db:"grado_actual_id" json:"grado_actual_id" validate:"required,gt=0"`
	EspecialidadId      *int64 `db:"especialidad_id" json:"especialidad_id" validate:"omitempty,gt=0"`
	UnidadId            *int64 `db:"unidad_id" json:"unidad_id" validate:"omitempty,gt=0"`
	FechaIngreso        *Fecha `db:"fecha_ingreso" json:"fecha_ingreso"`
	Estado              string `db:"estado" json:"estado" validate:"required,oneof=ACTIVO RETIRADO BAJA"`

	CategoriaPersonal json.RawMessage `db:"-" json:"categoria_personal"`
	GradoActual       json.RawMessage `db:"-" json:"grado_actual"`
	Especialidad      json.RawMessage `db:"-" json:"especialidad"`
	Unidad            json.RawMessage `db:"-" json:"unidad"`
}
