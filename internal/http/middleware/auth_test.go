package middleware

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	dbpkg "swiftroute/internal/db"
	httpctx "swiftroute/internal/http/ctx"
)

type stubAuthenticator struct {
	identity *dbpkg.ClientIdentity
	err      error
	gotKey   string
}

func (s *stubAuthenticator) Authenticate(raw string) (*dbpkg.ClientIdentity, error) {
	s.gotKey = raw
	if s.err != nil {
		return nil, s.err
	}
	return s.identity, nil
}

func newCtx(method, uri string) *fasthttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(uri)
	return ctx
}

func errorCodeOf(t *testing.T, ctx *fasthttp.RequestCtx) string {
	t.Helper()
	var body struct {
		Error *struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &body))
	require.NotNil(t, body.Error)
	return body.Error.Code
}

func TestExtractAPIKey(t *testing.T) {
	var h fasthttp.RequestHeader

	_, ok := ExtractAPIKey(&h)
	assert.False(t, ok)

	h.Set("X-API-Key", "sk_from_header")
	key, ok := ExtractAPIKey(&h)
	assert.True(t, ok)
	assert.Equal(t, "sk_from_header", key)

	// Authorization wins over X-API-Key.
	h.Set("Authorization", "Bearer sk_from_bearer")
	key, ok = ExtractAPIKey(&h)
	assert.True(t, ok)
	assert.Equal(t, "sk_from_bearer", key)

	h.Reset()
	h.Set("Authorization", "Bearer   sk_padded  ")
	key, ok = ExtractAPIKey(&h)
	assert.True(t, ok)
	assert.Equal(t, "sk_padded", key)

	// An empty bearer value falls through to X-API-Key.
	h.Reset()
	h.Set("Authorization", "Bearer ")
	h.Set("X-API-Key", "sk_fallback")
	key, ok = ExtractAPIKey(&h)
	assert.True(t, ok)
	assert.Equal(t, "sk_fallback", key)
}

func TestAPIKeyAuthMissingRequired(t *testing.T) {
	auth := &stubAuthenticator{}
	called := false
	handler := APIKeyAuth(auth, true)(func(ctx *fasthttp.RequestCtx) { called = true })

	ctx := newCtx(fasthttp.MethodGet, "/api/v1/profile")
	handler(ctx)

	assert.False(t, called)
	assert.Equal(t, fasthttp.StatusUnauthorized, ctx.Response.StatusCode())
	assert.Equal(t, "MISSING_API_KEY", errorCodeOf(t, ctx))
}

func TestAPIKeyAuthMissingOptional(t *testing.T) {
	auth := &stubAuthenticator{}
	called := false
	handler := APIKeyAuth(auth, false)(func(ctx *fasthttp.RequestCtx) {
		called = true
		_, ok := httpctx.Identity(ctx)
		assert.False(t, ok)
	})

	ctx := newCtx(fasthttp.MethodGet, "/api/v1/health")
	handler(ctx)

	assert.True(t, called)
}

func TestAPIKeyAuthInvalid(t *testing.T) {
	auth := &stubAuthenticator{err: dbpkg.ErrInvalidKey}
	called := false
	handler := APIKeyAuth(auth, true)(func(ctx *fasthttp.RequestCtx) { called = true })

	ctx := newCtx(fasthttp.MethodGet, "/api/v1/profile")
	ctx.Request.Header.Set("Authorization", "Bearer sk_bogus")
	handler(ctx)

	assert.False(t, called)
	assert.Equal(t, "sk_bogus", auth.gotKey)
	assert.Equal(t, fasthttp.StatusUnauthorized, ctx.Response.StatusCode())
	assert.Equal(t, "INVALID_API_KEY", errorCodeOf(t, ctx))
}

func TestAPIKeyAuthValid(t *testing.T) {
	identity := &dbpkg.ClientIdentity{KeyID: 7, ClientID: 3, Email: "ops@acme.test", BillingTier: dbpkg.TierProfessional}
	auth := &stubAuthenticator{identity: identity}

	var seen *dbpkg.ClientIdentity
	handler := APIKeyAuth(auth, true)(func(ctx *fasthttp.RequestCtx) {
		seen, _ = httpctx.Identity(ctx)
	})

	ctx := newCtx(fasthttp.MethodGet, "/api/v1/profile")
	ctx.Request.Header.Set("X-API-Key", "sk_valid")
	handler(ctx)

	require.NotNil(t, seen)
	assert.Equal(t, identity, seen)
}

func TestAPIKeyAuthOptionalStillValidatesPresentKey(t *testing.T) {
	auth := &stubAuthenticator{err: dbpkg.ErrInvalidKey}
	called := false
	handler := APIKeyAuth(auth, false)(func(ctx *fasthttp.RequestCtx) { called = true })

	ctx := newCtx(fasthttp.MethodGet, "/api/v1/health")
	ctx.Request.Header.Set("X-API-Key", "sk_bogus")
	handler(ctx)

	assert.False(t, called)
	assert.Equal(t, fasthttp.StatusUnauthorized, ctx.Response.StatusCode())
}
