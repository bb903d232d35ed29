package helpers

import (
	"context"
	"errors"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePageSize(t *testing.T) {
	page, size := ParsePageSize("", "")
	assert.Equal(t, 1, page)
	assert.Equal(t, 15, size)

	page, size = ParsePageSize("3", "500")
	assert.Equal(t, 3, page)
	assert.Equal(t, 100, size)

	page, size = ParsePageSize("-1", "abc")
	assert.Equal(t, 1, page)
	assert.Equal(t, 15, size)
}

func TestLastPage(t *testing.T) {
	assert.Equal(t, 1, LastPage(0, 15))
	assert.Equal(t, 1, LastPage(15, 15))
	assert.Equal(t, 2, LastPage(16, 15))
	assert.Equal(t, 1, LastPage(10, 0))
}

func TestParseIDList(t *testing.T) {
	ids, err := ParseIDList(" 3,1,,3 ,2")
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 1, 2}, ids)

	_, err = ParseIDList("1,x")
	assert.Error(t, err)
	_, err = ParseIDList("0")
	assert.Error(t, err)
}

func TestParseBearer(t *testing.T) {
	_, err := ParseBearer("")
	assert.ErrorIs(t, err, ErrNoAuthHeader)
	_, err = ParseBearer("Basic abc")
	assert.ErrorIs(t, err, ErrInvalidToken)

	token, err := ParseBearer("bearer  abc.def ")
	require.NoError(t, err)
	assert.Equal(t, "abc.def", token)
}

func sign(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestClaimsVerifiesSignatureWhenSecretIsSet(t *testing.T) {
	token := sign(t, jwt.MapClaims{"user_id": 7}, "s1")

	claims, err := Claims(token, "s1")
	require.NoError(t, err)
	id, err := UserID(claims)
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)

	_, err = Claims(token, "s2")
	assert.ErrorIs(t, err, ErrInvalidToken)

	claims, err = Claims(token, "")
	require.NoError(t, err, "sin secreto se leen los claims sin verificar")
	assert.EqualValues(t, 7, claims["user_id"])

	_, err = Claims("no-es-jwt", "")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestUserIDFallsBackToSub(t *testing.T) {
	id, err := UserID(jwt.MapClaims{"sub": "42"})
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	_, err = UserID(jwt.MapClaims{"email": "a@b.c"})
	assert.True(t, errors.Is(err, ErrClaimNotFound))

	_, err = UserID(jwt.MapClaims{"sub": "ana"})
	assert.Error(t, err)
}

func TestPrincipalTravelsInContext(t *testing.T) {
	assert.True(t, PrincipalFrom(context.Background()).Anonymous())
	assert.Nil(t, Actor(context.Background()))

	id := int64(9)
	ctx := WithPrincipal(context.Background(), Principal{UserID: &id, CorrelationID: "c-1"})
	assert.Equal(t, &id, Actor(ctx))
	assert.Equal(t, "c-1", PrincipalFrom(ctx).CorrelationID)
}
