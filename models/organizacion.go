package models

import "encoding/json"

// Departamento referencia un país del servicio de catálogos (pais_id remoto).
type Departamento struct {
	Auditoria
	Nombre string `db:"nombre" json:"nombre" validate:"required,max=100"`
	Codigo string `db:"codigo" json:"codigo" validate:"required,max=10"`
	PaisId int64  `db:"pais_id" json:"pais_id" validate:"required,gt=0"`

	Pais json.RawMessage `db:"-" json:"pais"`
}

type Municipio struct {
	Auditoria
	Nombre         string `db:"nombre" json:"nombre" validate:"required,max=100"`
	Codigo         string `db:"codigo" json:"codigo" validate:"required,max=10"`
	DepartamentoId int64  `db:"departamento_id" json:"departamento_id" validate:"required,gt=0"`
}

type Ciudad struct {
	Auditoria
	Nombre       string  `db:"nombre" json:"nombre" validate:"required,max=100"`
	CodigoPostal *string `db:"codigo_postal" json:"codigo_postal" validate:"omitempty,max=10"`
	MunicipioId  int64   `db:"municipio_id" json:"municipio_id" validate:"required,gt=0"`
}

type UbicacionGeografica struct {
	Auditoria
	Nombre   string   `db:"nombre" json:"nombre" validate:"required,max=150"`
	Latitud  *float64 `db:"latitud" json:"latitud" validate:"omitempty,min=-90,max=90"`
	Longitud *float64 `db:"longitud" json:"longitud" validate:"omitempty,min=-180,max=180"`
	CiudadId *int64   `db:"ciudad_id" json:"ciudad_id" validate:"omitempty,gt=0"`
}

// EstructuraMilitar es un nodo del árbol de unidades. unidad_padre_id y
// ubicacion_geografica_id son locales; tipo_estructura_id vive en catálogos.
type EstructuraMilitar struct {
	Auditoria
	Nombre                string `db:"nombre" json:"nombre" validate:"required,max=150"`
	Codigo                string `db:"codigo" json:"codigo" validate:"required,max=20"`
	UnidadPadreId         *int64 `db:"unidad_padre_id" json:"unidad_padre_id" validate:"omitempty,gt=0"`
	TipoEstructuraId      int64  `db:"tipo_estructura_id" json:"tipo_estructura_id" validate:"required,gt=0"`
	UbicacionGeograficaId *int64 `db:"ubicacion_geografica_id" json:"ubicacion_geografica_id" validate:"omitempty,gt=0"`

	TipoEstructura json.RawMessage `db:"-" json:"tipo_estructura"`
}

// NodoEstructura es la vista en árbol de una unidad y sus subunidades activas.
type NodoEstructura struct {
	EstructuraMilitar
	Subunidades []*NodoEstructura `json:"subunidades"`
}
