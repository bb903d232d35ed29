package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Auditoria agrupa las columnas comunes de todas las tablas: borrado lógico,
// contador de versión y actores de cada escritura.
type Auditoria struct {
	Id        int64      `db:"id" json:"id"`
	Activo    bool       `db:"activo" json:"activo"`
	Version   int64      `db:"version" json:"version"`
	CreatedBy *int64     `db:"created_by" json:"created_by"`
	UpdatedBy *int64     `db:"updated_by" json:"updated_by"`
	DeletedBy *int64     `db:"deleted_by" json:"-"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt *time.Time `db:"deleted_at" json:"-"`
}

// Meta expone el bloque de auditoría de cualquier entidad que lo embeba.
func (a *Auditoria) Meta() *Auditoria {
	return a
}

const fechaLayout = "2006-01-02"

// Fecha es una fecha sin hora. Acepta "2006-01-02" o RFC3339 al deserializar.
type Fecha struct {
	time.Time
}

// NewFecha trunca t al día en UTC.
func NewFecha(t time.Time) Fecha {
	y, m, d := t.UTC().Date()
	return Fecha{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// UnmarshalJSON soporta fecha simple o timestamp completo.
func (f *Fecha) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		f.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		f.Time = time.Time{}
		return nil
	}
	if t, err := time.Parse(fechaLayout, s); err == nil {
		*f = NewFecha(t)
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("fecha inválida %q", s)
	}
	*f = NewFecha(t)
	return nil
}

// MarshalJSON serializa como "2006-01-02".
func (f Fecha) MarshalJSON() ([]byte, error) {
	if f.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(f.Format(fechaLayout))
}

// Value implementa driver.Valuer.
func (f Fecha) Value() (driver.Value, error) {
	if f.IsZero() {
		return nil, nil
	}
	return f.Time, nil
}

// Scan implementa sql.Scanner.
func (f *Fecha) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		f.Time = time.Time{}
	case time.Time:
		*f = NewFecha(v)
	case []byte:
		return f.scanString(string(v))
	case string:
		return f.scanString(v)
	default:
		return fmt.Errorf("tipo no soportado para Fecha: %T", src)
	}
	return nil
}

func (f *Fecha) scanString(s string) error {
	s = strings.TrimSpace(s)
	if len(s) > len(fechaLayout) {
		s = s[:len(fechaLayout)]
	}
	t, err := time.Parse(fechaLayout, s)
	if err != nil {
		return err
	}
	*f = NewFecha(t)
	return nil
}
