package handlers

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/valyala/fasthttp"
	"gorm.io/gorm"

	dbpkg "swiftroute/internal/db"
)

type trialRequest struct {
	Email       string `json:"email"`
	CompanyName string `json:"company_name"`
	Tier        string `json:"tier"`
}

func parseTrialRequest(ctx *fasthttp.RequestCtx) (*trialRequest, bool) {
	var req trialRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		WriteError(ctx, fasthttp.StatusBadRequest, CodeInvalidRequest, "Invalid JSON body", nil)
		return nil, false
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		WriteError(ctx, fasthttp.StatusBadRequest, CodeInvalidRequest, "A valid email is required", nil)
		return nil, false
	}
	return &req, true
}

// CreateTrial provisions a 14-day trial for an email address. Behind the
// service credential; the signup frontend calls this, not end users.
func CreateTrial(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		req, ok := parseTrialRequest(ctx)
		if !ok {
			return
		}

		grant, err := dbpkg.CreateTrial(db, req.Email, req.CompanyName)
		if err != nil {
			if errors.Is(err, dbpkg.ErrAlreadySubscribed) {
				WriteError(ctx, fasthttp.StatusConflict, CodeInvalidRequest, "Client already has a paid subscription", nil)
				return
			}
			WriteInternalError(ctx, err)
			return
		}

		status := fasthttp.StatusCreated
		if grant.ExistingTrial {
			status = fasthttp.StatusOK
		}
		WriteData(ctx, status, grant, nil)
	}
}

// RegenerateTrial reissues the key for an expired trial.
func RegenerateTrial(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		req, ok := parseTrialRequest(ctx)
		if !ok {
			return
		}

		grant, err := dbpkg.RegenerateTrialKey(db, req.Email)
		if err != nil {
			switch {
			case errors.Is(err, dbpkg.ErrNoTrial):
				WriteError(ctx, fasthttp.StatusNotFound, CodeClientNotFound, "No trial subscription found", nil)
			case errors.Is(err, dbpkg.ErrTrialNotExpired):
				WriteError(ctx, fasthttp.StatusConflict, CodeInvalidRequest, "Trial has not expired yet", nil)
			default:
				WriteInternalError(ctx, err)
			}
			return
		}

		WriteData(ctx, fasthttp.StatusOK, grant, nil)
	}
}

// UpgradeTrial moves a trial client onto a paid tier and returns the new
// non-expiring key.
func UpgradeTrial(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		req, ok := parseTrialRequest(ctx)
		if !ok {
			return
		}
		if !dbpkg.ValidTier(req.Tier) {
			WriteError(ctx, fasthttp.StatusBadRequest, CodeInvalidRequest, "Invalid billing tier", map[string]any{
				"valid_tiers": []string{dbpkg.TierStarter, dbpkg.TierProfessional, dbpkg.TierEnterprise},
			})
			return
		}

		plaintext, client, err := dbpkg.UpgradeFromTrial(db, req.Email, req.Tier)
		if err != nil {
			switch {
			case errors.Is(err, dbpkg.ErrClientNotFound):
				WriteError(ctx, fasthttp.StatusNotFound, CodeClientNotFound, "Client not found", nil)
			case errors.Is(err, dbpkg.ErrNoTrial):
				WriteError(ctx, fasthttp.StatusConflict, CodeInvalidRequest, "Client is not on a trial", nil)
			default:
				WriteInternalError(ctx, err)
			}
			return
		}

		WriteData(ctx, fasthttp.StatusOK, map[string]any{
			"api_key":       plaintext,
			"billing_tier":  client.BillingTier,
			"monthly_quota": client.MonthlyQuota,
		}, map[string]any{
			"warning": "Store this key securely. It will not be shown again.",
		})
	}
}
