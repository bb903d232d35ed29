package models

// Acciones registrables sobre un archivo.
const (
	AccionVer       = "VER"
	AccionDescargar = "DESCARGAR"
	AccionSubir     = "SUBIR"
	AccionEliminar  = "ELIMINAR"
)

// Archivo guarda los metadatos de un objeto almacenado externamente.
type Archivo struct {
	Auditoria
	Uuid        string  `db:"uuid" json:"uuid"`
	Nombre      string  `db:"nombre" json:"nombre" validate:"required,max=255"`
	Ruta        string  `db:"ruta" json:"ruta" validate:"required,max=500"`
	TipoMime    string  `db:"tipo_mime" json:"tipo_mime" validate:"required,max=100"`
	TamanoBytes int64   `db:"tamano_bytes" json:"tamano_bytes" validate:"min=0"`
	HashSha256  *string `db:"hash_sha256" json:"hash_sha256" validate:"omitempty,len=64,hexadecimal"`
}

// RegistroAcceso es un registro de auditoría de sólo inserción.
type RegistroAcceso struct {
	Auditoria
	ArchivoId     int64   `db:"archivo_id" json:"archivo_id" validate:"required,gt=0"`
	Accion        string  `db:"accion" json:"accion" validate:"required,oneof=VER DESCARGAR SUBIR ELIMINAR"`
	Ip            *string `db:"ip" json:"ip" validate:"omitempty,ip"`
	AgenteUsuario *string `db:"agente_usuario" json:"agente_usuario" validate:"omitempty,max=255"`
}
