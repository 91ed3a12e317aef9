package handlers

import (
	"time"

	"github.com/valyala/fasthttp"
	"gorm.io/gorm"

	dbpkg "swiftroute/internal/db"
)

// Version is the reported service version.
const Version = "1.0.0"

// Health reports service and database status. Auth is optional on this
// route: a supplied key is validated and its usage recorded, but no key is
// required.
func Health(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		dbStatus := "operational"
		if err := dbpkg.Ping(db); err != nil {
			dbStatus = "degraded"
		}

		status := "healthy"
		if dbStatus != "operational" {
			status = "degraded"
		}

		WriteData(ctx, fasthttp.StatusOK, map[string]any{
			"status":    status,
			"version":   Version,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"services": map[string]string{
				"database": dbStatus,
			},
		}, nil)
	}
}

// Liveness is the bare process-up probe, outside the API envelope.
func Liveness() fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBodyString("ok")
	}
}
