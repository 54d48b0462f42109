package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func request(headers map[string]string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/api/expenses", nil)
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	return r
}

func TestTokenRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)
	token, err := issuer.Issue("acct-1")
	require.NoError(t, err)

	owner, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "acct-1", owner)
}

func TestTokenDefaultTTL(t *testing.T) {
	issuer := NewTokenIssuer("secret", 0)
	assert.Equal(t, DefaultTokenTTL, issuer.ttl)
}

func TestTokenRejections(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)
	good, err := issuer.Issue("acct-1")
	require.NoError(t, err)

	expiredIssuer := NewTokenIssuer("secret", time.Hour)
	expiredIssuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := expiredIssuer.Issue("acct-1")
	require.NoError(t, err)

	otherKey, err := NewTokenIssuer("other", time.Hour).Issue("acct-1")
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "acct-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "acct-1"}).
		SignedString([]byte("secret"))
	require.NoError(t, err)

	cases := map[string]string{
		"expired":         expired,
		"wrong key":       otherKey,
		"alg none":        none,
		"missing expiry":  noExpiry,
		"garbage":         "not.a.token",
		"tampered suffix": good + "x",
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := issuer.Parse(tok)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestNew(t *testing.T) {
	r, err := New(ModeToken, NewTokenIssuer("s", 0))
	require.NoError(t, err)
	assert.Equal(t, ModeToken, r.Mode())

	_, err = New(ModeToken, nil)
	assert.Error(t, err)

	r, err = New(ModeDevice, nil)
	require.NoError(t, err)
	assert.Equal(t, ModeDevice, r.Mode())

	r, err = New(ModeOpen, nil)
	require.NoError(t, err)
	assert.Equal(t, ModeOpen, r.Mode())

	_, err = New("cookie", nil)
	assert.Error(t, err)
	assert.False(t, Mode("cookie").IsValid())
}

func TestTokenAuthResolve(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)
	token, err := issuer.Issue("acct-7")
	require.NoError(t, err)
	auth := TokenAuth{Tokens: issuer}

	owner, err := auth.Resolve(request(map[string]string{TokenHeader: token}))
	require.NoError(t, err)
	assert.Equal(t, "acct-7", owner)

	_, err = auth.Resolve(request(nil))
	assert.ErrorIs(t, err, ErrMissingToken)

	_, err = auth.Resolve(request(map[string]string{TokenHeader: "bogus"}))
	ae, ok := AsAuthError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, ae.Status)
	assert.Equal(t, "Token is not valid", ae.Error())
}

func TestDeviceIDAuthResolve(t *testing.T) {
	auth := DeviceIDAuth{}

	owner, err := auth.Resolve(request(map[string]string{DeviceHeader: " phone-42 "}))
	require.NoError(t, err)
	assert.Equal(t, "phone-42", owner)

	_, err = auth.Resolve(request(map[string]string{DeviceHeader: "   "}))
	ae, ok := AsAuthError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, ae.Status)
}

func TestOpenResolve(t *testing.T) {
	owner, err := Open{}.Resolve(request(map[string]string{DeviceHeader: "ignored"}))
	require.NoError(t, err)
	assert.Equal(t, PublicOwner, owner)
}
