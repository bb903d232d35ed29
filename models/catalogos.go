package models

// Pais es la entidad canónica de país del servicio de catálogos. Otros servicios
// guardan su id sin restricción de base de datos.
type Pais struct {
	Auditoria
	Nombre           string  `db:"nombre" json:"nombre" validate:"required,max=100"`
	CodigoIso2       *string `db:"codigo_iso2" json:"codigo_iso2" validate:"omitempty,len=2,alpha"`
	CodigoIso3       string  `db:"codigo_iso3" json:"codigo_iso3" validate:"required,len=3,alpha"`
	CodigoTelefonico *string `db:"codigo_telefonico" json:"codigo_telefonico" validate:"omitempty,max=10"`
}

// TipoEstructura clasifica las unidades de la estructura militar (división, brigada, batallón...).
type TipoEstructura struct {
	Auditoria
	Nombre      string  `db:"nombre" json:"nombre" validate:"required,max=100"`
	Nivel       int     `db:"nivel" json:"nivel" validate:"min=0,max=20"`
	Descripcion *string `db:"descripcion" json:"descripcion" validate:"omitempty,max=500"`
}

// CategoriaPersonal agrupa los grados (oficiales, suboficiales, tropa...).
type CategoriaPersonal struct {
	Auditoria
	Nombre string `db:"nombre" json:"nombre" validate:"required,max=100"`
	Codigo string `db:"codigo" json:"codigo" validate:"required,max=20"`
}

// Grado es un rango militar dentro de una categoría de personal.
type Grado struct {
	Auditoria
	Nombre              string `db:"nombre" json:"nombre" validate:"required,max=100"`
	Abreviatura         string `db:"abreviatura" json:"abreviatura" validate:"required,max=20"`
	CategoriaPersonalId int64  `db:"categoria_personal_id" json:"categoria_personal_id" validate:"required,gt=0"`
	Orden               int    `db:"orden" json:"orden" validate:"min=0,max=100"`
}

type Especialidad struct {
	Auditoria
	Nombre string  `db:"nombre" json:"nombre" validate:"required,max=100"`
	Codigo *string `db:"codigo" json:"codigo" validate:"omitempty,max=20"`
}

type Permiso struct {
	Auditoria
	Nombre      string  `db:"nombre" json:"nombre" validate:"required,max=100"`
	Clave       string  `db:"clave" json:"clave" validate:"required,max=100"`
	Descripcion *string `db:"descripcion" json:"descripcion" validate:"omitempty,max=500"`
}
