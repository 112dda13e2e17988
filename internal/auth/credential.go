// Package auth carries the caller's credential from the inbound request to
// the outbound backend call.
//
// The gateway never validates, decodes or refreshes a credential. It only
// relays the Authorization value byte for byte:
//   - Inbound has Authorization:  outbound gets the identical value
//   - Inbound has none:           outbound has no Authorization header at all
package auth

import (
	"net/http"
	"strings"

	"github.com/doublev/bff-gateway/internal/utils"
)

const (
	// HeaderAuthorization is the standard Authorization header.
	HeaderAuthorization = "Authorization"
)

// Scheme classifies a credential for telemetry.
type Scheme string

const (
	SchemeNone   Scheme = "none"
	SchemeBearer Scheme = "bearer"
	SchemeOther  Scheme = "other"
)

// Credential is an opaque Authorization header value.
// The zero value means the caller sent none.
type Credential struct {
	value string
}

// FromRequest returns the inbound Authorization value.
func FromRequest(r *http.Request) Credential {
	return Credential{value: r.Header.Get(HeaderAuthorization)}
}

// Bearer builds a credential from a bare token, such as the admin token.
// An empty token yields the zero Credential.
func Bearer(token string) Credential {
	token = strings.TrimSpace(token)
	if token == "" {
		return Credential{}
	}
	return Credential{value: "Bearer " + token}
}

// Present reports whether a credential was supplied.
func (c Credential) Present() bool {
	return c.value != ""
}

// Value returns the raw header value.
func (c Credential) Value() string {
	return c.value
}

// Scheme detects the authorization scheme.
func (c Credential) Scheme() Scheme {
	if c.value == "" {
		return SchemeNone
	}
	if len(c.value) > 7 && strings.EqualFold(c.value[:7], "bearer ") {
		return SchemeBearer
	}
	return SchemeOther
}

// Masked returns a log-safe rendering of the credential.
func (c Credential) Masked() string {
	return utils.MaskAuthorization(c.value)
}

// String implements fmt.Stringer with the masked value so a credential
// accidentally passed to a logger never leaks.
func (c Credential) String() string {
	return c.Masked()
}

// Forward sets the credential on an outbound request. An absent credential
// removes any Authorization header instead of sending an empty one.
func Forward(out *http.Request, c Credential) {
	if !c.Present() {
		out.Header.Del(HeaderAuthorization)
		return
	}
	out.Header.Set(HeaderAuthorization, c.value)
}
