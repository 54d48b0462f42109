// Package identity resolves the owner key of a request. One strategy is
// chosen at startup and shared by every request:
//
//   - token:  signed account token in the x-auth-token header
//   - device: opaque client identifier in the x-device-id header
//   - open:   no identification, every caller shares one owner key
package identity

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const (
	TokenHeader  = "x-auth-token"
	DeviceHeader = "x-device-id"

	// PublicOwner is the owner key used by every request in open mode.
	PublicOwner = "public"
)

type Mode string

const (
	ModeToken  Mode = "token"
	ModeDevice Mode = "device"
	ModeOpen   Mode = "open"
)

func (m Mode) String() string { return string(m) }

func (m Mode) IsValid() bool {
	switch m {
	case ModeToken, ModeDevice, ModeOpen:
		return true
	default:
		return false
	}
}

// AuthError is a rejected identification. Status is the HTTP status the
// API answers with.
type AuthError struct {
	Status int
	msg    string
}

func (e *AuthError) Error() string { return e.msg }

var (
	ErrMissingToken    = &AuthError{Status: http.StatusUnauthorized, msg: "No token, authorization denied"}
	ErrInvalidToken    = &AuthError{Status: http.StatusUnauthorized, msg: "Token is not valid"}
	ErrMissingDeviceID = &AuthError{Status: http.StatusBadRequest, msg: "Device ID header missing"}
)

// AsAuthError unwraps err to an *AuthError.
func AsAuthError(err error) (*AuthError, bool) {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// Resolver extracts the owner key from a request.
type Resolver interface {
	Resolve(r *http.Request) (owner string, err error)
	Mode() Mode
}

type (
	TokenAuth struct {
		Tokens *TokenIssuer
	}

	DeviceIDAuth struct{}

	Open struct{}
)

// New builds the resolver for mode. tokens is required in token mode.
func New(mode Mode, tokens *TokenIssuer) (Resolver, error) {
	switch mode {
	case ModeToken:
		if tokens == nil {
			return nil, fmt.Errorf("token mode requires a token issuer")
		}
		return TokenAuth{Tokens: tokens}, nil
	case ModeDevice:
		return DeviceIDAuth{}, nil
	case ModeOpen:
		return Open{}, nil
	default:
		return nil, fmt.Errorf("unknown identity mode %q", mode)
	}
}

func (a TokenAuth) Resolve(r *http.Request) (string, error) {
	raw := strings.TrimSpace(r.Header.Get(TokenHeader))
	if raw == "" {
		return "", ErrMissingToken
	}
	return a.Tokens.Parse(raw)
}

func (TokenAuth) Mode() Mode { return ModeToken }

func (DeviceIDAuth) Resolve(r *http.Request) (string, error) {
	id := strings.TrimSpace(r.Header.Get(DeviceHeader))
	if id == "" {
		return "", ErrMissingDeviceID
	}
	return id, nil
}

func (DeviceIDAuth) Mode() Mode { return ModeDevice }

func (Open) Resolve(*http.Request) (string, error) { return PublicOwner, nil }

func (Open) Mode() Mode { return ModeOpen }
