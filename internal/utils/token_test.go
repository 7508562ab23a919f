package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/mehmetcc/cafe-authentication-service/internal/person"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "access-secret-for-tests"

func TestIssueAccessToken_RoundTrip(t *testing.T) {
	raw, err := IssueAccessToken("42", "barista@example.com", person.Admin, testSecret, time.Minute)
	require.NoError(t, err)

	claims, err := ParseAccessToken(raw, testSecret)
	require.NoError(t, err)

	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, "barista@example.com", claims.Email)
	assert.Equal(t, person.Admin, claims.Role)
	assert.NotEmpty(t, claims.ID)
	assert.WithinDuration(t, time.Now().Add(time.Minute), claims.ExpiresAt.Time, 5*time.Second)
}

func TestIssueAccessToken_DistinctPerCall(t *testing.T) {
	first, err := IssueAccessToken("7", "a@example.com", person.User, testSecret, time.Minute)
	require.NoError(t, err)
	second, err := IssueAccessToken("7", "a@example.com", person.User, testSecret, time.Minute)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)

	c1, err := ParseAccessToken(first, testSecret)
	require.NoError(t, err)
	c2, err := ParseAccessToken(second, testSecret)
	require.NoError(t, err)
	assert.NotEqual(t, c1.ID, c2.ID)
}

func TestParseAccessToken_Rejects(t *testing.T) {
	raw, err := IssueAccessToken("1", "a@example.com", person.User, testSecret, time.Minute)
	require.NoError(t, err)

	t.Run("wrong secret", func(t *testing.T) {
		_, err := ParseAccessToken(raw, "other-secret")
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		expired, err := IssueAccessToken("1", "a@example.com", person.User, testSecret, -time.Minute)
		require.NoError(t, err)
		_, err = ParseAccessToken(expired, testSecret)
		assert.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := ParseAccessToken("not-a-jwt", testSecret)
		assert.Error(t, err)
	})

	t.Run("foreign issuer", func(t *testing.T) {
		claims := AccessClaims{
			Role: person.Admin,
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "1",
				Issuer:    "someone-else",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
			},
		}
		foreign, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)
		_, err = ParseAccessToken(foreign, testSecret)
		assert.ErrorIs(t, err, ErrInvalidAccessToken)
	})

	t.Run("other algorithm", func(t *testing.T) {
		claims := AccessClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "1",
				Issuer:    accessTokenIssuer,
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
			},
		}
		hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)
		_, err = ParseAccessToken(hs512, testSecret)
		assert.Error(t, err)
	})
}
