package ctx

import (
	"github.com/valyala/fasthttp"

	dbpkg "swiftroute/internal/db"
)

const (
	requestIDKey = "requestID"
	identityKey  = "identity"
	errorCodeKey = "errorCode"
	rateKey      = "rateStatus"
)

func SetRequestID(ctx *fasthttp.RequestCtx, id string) {
	ctx.SetUserValue(requestIDKey, id)
}

func RequestID(ctx *fasthttp.RequestCtx) string {
	if v, ok := ctx.UserValue(requestIDKey).(string); ok {
		return v
	}
	return "unknown"
}

func SetIdentity(ctx *fasthttp.RequestCtx, id *dbpkg.ClientIdentity) {
	ctx.SetUserValue(identityKey, id)
}

func Identity(ctx *fasthttp.RequestCtx) (*dbpkg.ClientIdentity, bool) {
	v := ctx.UserValue(identityKey)
	if v == nil {
		return nil, false
	}
	id, ok := v.(*dbpkg.ClientIdentity)
	return id, ok && id != nil
}

// SetErrorCode records the envelope error code a handler responded with, so
// the usage recorder can persist it.
func SetErrorCode(ctx *fasthttp.RequestCtx, code string) {
	ctx.SetUserValue(errorCodeKey, code)
}

func ErrorCode(ctx *fasthttp.RequestCtx) string {
	if v, ok := ctx.UserValue(errorCodeKey).(string); ok {
		return v
	}
	return ""
}

func SetRateStatus(ctx *fasthttp.RequestCtx, st dbpkg.RateStatus) {
	ctx.SetUserValue(rateKey, st)
}

func RateStatus(ctx *fasthttp.RequestCtx) (dbpkg.RateStatus, bool) {
	v := ctx.UserValue(rateKey)
	if v == nil {
		return dbpkg.RateStatus{}, false
	}
	st, ok := v.(dbpkg.RateStatus)
	return st, ok
}
