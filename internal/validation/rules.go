package validation

import (
	"context"
	"errors"
	"reflect"

	"github.com/beego/beego/v2/core/logs"

	"github.com/udistrital/microservicios_crud/internal/resolver"
	"github.com/udistrital/microservicios_crud/internal/store"
)

// Mensajes de las reglas contra almacenamiento.
const (
	MsgTaken         = "el valor ya está registrado"
	MsgLocalMissing  = "el registro referenciado no existe"
	MsgRemoteMissing = "la referencia no existe"
)

// Input es el registro a validar; ID es 0 al crear.
type Input struct {
	Record interface{}
	ID     int64
}

// Rule es una validación que puede consultar almacenamiento. Devuelve el mensaje a
// reportar en Field o "" si pasa; err se reserva para fallas de infraestructura.
type Rule interface {
	Field() string
	Check(ctx context.Context, in Input) (string, error)
}

// Uniqueness es la parte del repositorio que necesita Unique.
type Uniqueness interface {
	Taken(ctx context.Context, column string, value interface{}, excludeID int64) (bool, error)
}

// Unique exige que ninguna otra fila activa use el mismo valor en la columna.
type Unique struct {
	Name  string
	Store Uniqueness
}

func (r Unique) Field() string { return r.Name }

func (r Unique) Check(ctx context.Context, in Input) (string, error) {
	v, ok := value(in.Record, r.Name)
	if !ok {
		return "", nil
	}
	taken, err := r.Store.Taken(ctx, r.Name, v, in.ID)
	if err != nil {
		return "", err
	}
	if taken {
		return MsgTaken, nil
	}
	return "", nil
}

// LocalRef exige que el id apunte a una fila activa de otra tabla del mismo servicio.
type LocalRef struct {
	Name  string
	Table string
	DB    store.Database
}

func (r LocalRef) Field() string { return r.Name }

func (r LocalRef) Check(ctx context.Context, in Input) (string, error) {
	id, ok := idValue(in.Record, r.Name)
	if !ok {
		return "", nil
	}
	exists, err := r.DB.ExistsActive(ctx, r.Table, id)
	if err != nil {
		return "", err
	}
	if !exists {
		return MsgLocalMissing, nil
	}
	return "", nil
}

// RemoteChecker es la parte del resolver que necesita RemoteRef.
type RemoteChecker interface {
	Exists(ctx context.Context, ref resolver.Ref, id int64) (bool, error)
}

// RemoteRef exige que el id exista en el servicio dueño. Un servicio caído produce
// el mismo mensaje que un id inexistente.
type RemoteRef struct {
	Name     string
	Ref      resolver.Ref
	Resolver RemoteChecker
}

func (r RemoteRef) Field() string { return r.Name }

func (r RemoteRef) Check(ctx context.Context, in Input) (string, error) {
	id, ok := idValue(in.Record, r.Name)
	if !ok {
		return "", nil
	}
	exists, err := r.Resolver.Exists(ctx, r.Ref, id)
	if err != nil {
		if !errors.Is(err, resolver.ErrUnavailable) {
			return "", err
		}
		logs.Warn("validación remota sin respuesta field=%s ref=%s id=%d err=%v", r.Name, r.Ref, id, err)
		return MsgRemoteMissing, nil
	}
	if !exists {
		return MsgRemoteMissing, nil
	}
	return "", nil
}

// Func adapta una función a Rule para validaciones propias de un recurso.
type Func struct {
	Name string
	Fn   func(ctx context.Context, in Input) (string, error)
}

func (r Func) Field() string { return r.Name }

func (r Func) Check(ctx context.Context, in Input) (string, error) {
	return r.Fn(ctx, in)
}

// value devuelve el valor de la columna, o ok=false si es nulo o vacío.
func value(rec interface{}, column string) (interface{}, bool) {
	v, ok := store.ColumnValue(rec, column)
	if !ok || v == nil {
		return nil, false
	}
	if reflect.ValueOf(v).IsZero() {
		return nil, false
	}
	return v, true
}

func idValue(rec interface{}, column string) (int64, bool) {
	v, ok := value(rec, column)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok && id > 0
}
