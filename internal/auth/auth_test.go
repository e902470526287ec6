package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return ss
}

func validClaims() Claims {
	return Claims{
		FullName:      "Alice Prof",
		InstitutionID: "inst-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ID:        "jti-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestValidateAcceptsGoodToken(t *testing.T) {
	v := NewValidator(testSecret, nil)
	token := signToken(t, testSecret, validClaims())

	identity, err := v.Validate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", identity.UserID)
	assert.Equal(t, "Alice Prof", identity.FullName)
	assert.Equal(t, "inst-1", identity.InstitutionID)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	v := NewValidator(testSecret, nil)
	token := signToken(t, "other-secret", validClaims())

	_, err := v.Validate(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	v := NewValidator(testSecret, nil)
	claims := validClaims()
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	token := signToken(t, testSecret, claims)

	_, err := v.Validate(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsMissingInstitution(t *testing.T) {
	v := NewValidator(testSecret, nil)
	claims := validClaims()
	claims.InstitutionID = ""
	token := signToken(t, testSecret, claims)

	_, err := v.Validate(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsMissingSubject(t *testing.T) {
	v := NewValidator(testSecret, nil)
	claims := validClaims()
	claims.Subject = ""
	token := signToken(t, testSecret, claims)

	_, err := v.Validate(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsGarbage(t *testing.T) {
	v := NewValidator(testSecret, nil)

	_, err := v.Validate(context.Background(), "not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsNoneAlgorithm(t *testing.T) {
	v := NewValidator(testSecret, nil)
	token := jwt.NewWithClaims(jwt.SigningMethodNone, validClaims())
	ss, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = v.Validate(context.Background(), ss)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
