package testutil

import (
	"context"
	"net/http"
)

// gorilla/csrf stores the per-request token under this plain string key;
// csrf.Token(r) reads it back.
const csrfTokenKey = "gorilla.csrf.Token"

// TestCSRFToken is the token WithCSRFToken injects. Rendered forms carry it
// in their hidden csrf_token field.
const TestCSRFToken = "test-csrf-token-12345"

// WithCSRFToken puts TestCSRFToken in r's context so handlers that render
// forms (through viewdata.NewBaseVM) see a token without csrf.Protect.
func WithCSRFToken(r *http.Request) *http.Request {
	//lint:ignore SA1029 must match gorilla/csrf's key type
	return r.WithContext(context.WithValue(r.Context(), csrfTokenKey, TestCSRFToken))
}

// NewAuthenticatedRequestWithCSRF is NewAuthenticatedRequest plus a CSRF
// token, for GET handlers that render forms.
func NewAuthenticatedRequestWithCSRF(method, target string, user TestUser) *http.Request {
	return WithCSRFToken(NewAuthenticatedRequest(method, target, user))
}
