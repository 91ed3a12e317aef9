package handlers

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"

	httpctx "swiftroute/internal/http/ctx"
)

// Error codes surfaced to API callers. Authentication failures share
// INVALID_API_KEY regardless of cause (unknown, inactive, expired, upstream
// failure) so the API cannot be used as an oracle for key state.
const (
	CodeMissingAPIKey     = "MISSING_API_KEY"
	CodeInvalidAPIKey     = "INVALID_API_KEY"
	CodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	CodeClientNotFound    = "CLIENT_NOT_FOUND"
	CodeKeyNotFound       = "KEY_NOT_FOUND"
	CodeInvalidRequest    = "INVALID_REQUEST"
	CodeNotFound          = "NOT_FOUND"
	CodeMethodNotAllowed  = "METHOD_NOT_ALLOWED"
	CodeNotImplemented    = "NOT_IMPLEMENTED"
	CodeInternalError     = "INTERNAL_SERVER_ERROR"
)

// ErrorBody is the fixed error triple inside the envelope.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details"`
}

// Envelope is the fixed response shape for every API outcome.
type Envelope struct {
	Data      any            `json:"data,omitempty"`
	Error     *ErrorBody     `json:"error,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	RequestID string         `json:"request_id"`
	Timestamp string         `json:"timestamp"`
}

// NewRequestID mints an id in the service's req_<unixms>_<8hex> format.
func NewRequestID() string {
	return fmt.Sprintf("req_%d_%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}

func writeEnvelope(ctx *fasthttp.RequestCtx, status int, env Envelope) {
	env.RequestID = httpctx.RequestID(ctx)
	env.Timestamp = time.Now().UTC().Format(time.RFC3339)

	body, err := json.Marshal(env)
	if err != nil {
		log.WithError(err).Error("failed to marshal response envelope")
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		ctx.SetContentType("application/json")
		ctx.SetBodyString(`{"error":{"code":"INTERNAL_SERVER_ERROR","message":"Internal server error","details":null}}`)
		return
	}
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}

// WriteData wraps a success payload in the envelope.
func WriteData(ctx *fasthttp.RequestCtx, status int, data any, metadata map[string]any) {
	writeEnvelope(ctx, status, Envelope{Data: data, Metadata: metadata})
}

// WriteError wraps an error in the envelope and records the code for the
// usage recorder. Details must never contain backend error text.
func WriteError(ctx *fasthttp.RequestCtx, status int, code, message string, details any) {
	httpctx.SetErrorCode(ctx, code)
	writeEnvelope(ctx, status, Envelope{Error: &ErrorBody{Code: code, Message: message, Details: details}})
}

// WriteInternalError logs the underlying cause and responds with the
// generic internal-error envelope. Callers never see err's text.
func WriteInternalError(ctx *fasthttp.RequestCtx, err error) {
	log.WithError(err).WithFields(log.Fields{
		"request_id": httpctx.RequestID(ctx),
		"path":       string(ctx.Path()),
	}).Error("request failed")
	WriteError(ctx, fasthttp.StatusInternalServerError, CodeInternalError, "Internal server error", nil)
}
