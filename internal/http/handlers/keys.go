package handlers

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"gorm.io/gorm"

	dbpkg "swiftroute/internal/db"
)

type createKeyRequest struct {
	Name      string     `json:"name"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// CreateKey issues a new API key for the authenticated client. The plaintext
// key appears in this response and nowhere else.
func CreateKey(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		identity, ok := MustIdentity(ctx)
		if !ok {
			return
		}

		var req createKeyRequest
		if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
			WriteError(ctx, fasthttp.StatusBadRequest, CodeInvalidRequest, "Invalid JSON body", nil)
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			WriteError(ctx, fasthttp.StatusBadRequest, CodeInvalidRequest, "Key name is required", nil)
			return
		}
		if req.ExpiresAt != nil && !req.ExpiresAt.After(time.Now()) {
			WriteError(ctx, fasthttp.StatusBadRequest, CodeInvalidRequest, "expires_at must be in the future", nil)
			return
		}

		plaintext, key, err := dbpkg.CreateKey(db, identity.ClientID, req.Name, req.ExpiresAt)
		if err != nil {
			WriteInternalError(ctx, err)
			return
		}

		info := keyInfo(key)
		WriteData(ctx, fasthttp.StatusCreated, map[string]any{
			"api_key": plaintext,
			"key":     info,
		}, map[string]any{
			"warning": "Store this key securely. It will not be shown again.",
		})
	}
}

// DeleteKey deactivates one of the authenticated client's keys. Keys are
// never hard-deleted, and deactivating twice is harmless.
func DeleteKey(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		identity, ok := MustIdentity(ctx)
		if !ok {
			return
		}

		raw, _ := ctx.UserValue("id").(string)
		keyID, err := strconv.ParseUint(raw, 10, 32)
		if err != nil || keyID == 0 {
			WriteError(ctx, fasthttp.StatusBadRequest, CodeInvalidRequest, "Invalid key id", nil)
			return
		}

		if err := dbpkg.DeactivateKey(db, identity.ClientID, uint(keyID)); err != nil {
			if errors.Is(err, dbpkg.ErrKeyNotFound) {
				WriteError(ctx, fasthttp.StatusNotFound, CodeKeyNotFound, "API key not found", nil)
				return
			}
			WriteInternalError(ctx, err)
			return
		}

		WriteData(ctx, fasthttp.StatusOK, map[string]any{
			"id":     uint(keyID),
			"active": false,
		}, nil)
	}
}
