package helpers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Cabeceras que se reenvían a los servicios hermanos.
const (
	HeaderAuthorization = "Authorization"
	HeaderCorrelationID = "X-Correlation-Id"
)

var (
	// ErrNoAuthHeader se devuelve cuando no se encuentra el header Authorization.
	ErrNoAuthHeader = errors.New("authorization header missing")
	// ErrInvalidToken se devuelve cuando el token no es un JWT válido o su firma no coincide.
	ErrInvalidToken = errors.New("invalid bearer token")
	// ErrClaimNotFound indica que el claim requerido no está presente.
	ErrClaimNotFound = errors.New("claim not found")
)

// Principal identifica a quien hace la petición. UserID es nil para peticiones anónimas.
type Principal struct {
	UserID        *int64
	Authorization string
	CorrelationID string
}

// Anonymous informa si la petición no trae un usuario identificado.
func (p Principal) Anonymous() bool {
	return p.UserID == nil
}

type principalKey struct{}

// WithPrincipal guarda p en el contexto de la petición.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom recupera el principal; devuelve uno anónimo si no existe.
func PrincipalFrom(ctx context.Context) Principal {
	if ctx == nil {
		return Principal{}
	}
	p, _ := ctx.Value(principalKey{}).(Principal)
	return p
}

// Actor devuelve el id del usuario para las columnas created_by/updated_by/deleted_by.
func Actor(ctx context.Context) *int64 {
	return PrincipalFrom(ctx).UserID
}

// ParseBearer extrae el token de un header Authorization.
func ParseBearer(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrNoAuthHeader
	}
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return "", ErrInvalidToken
	}
	return strings.TrimSpace(header[7:]), nil
}

// Claims decodifica el token. Con secret verifica la firma HMAC; sin él sólo lee los claims.
func Claims(token, secret string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	if secret == "" {
		if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		return claims, nil
	}

	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// UserID toma el id numérico del usuario de "user_id" o, en su defecto, de "sub".
func UserID(claims jwt.MapClaims) (int64, error) {
	for _, key := range []string{"user_id", "sub"} {
		if raw, ok := claims[key]; ok {
			return intClaim(key, raw)
		}
	}
	return 0, fmt.Errorf("%w: user_id", ErrClaimNotFound)
}

func intClaim(key string, value interface{}) (int64, error) {
	switch v := value.(type) {
	case float64:
		return int64(v), nil
	case json.Number:
		return v.Int64()
	case string:
		if strings.TrimSpace(v) == "" {
			return 0, fmt.Errorf("%w: %s", ErrClaimNotFound, key)
		}
		return strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	default:
		return 0, fmt.Errorf("claim %s is not numeric", key)
	}
}
