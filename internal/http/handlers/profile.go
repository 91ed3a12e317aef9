package handlers

import (
	"errors"
	"time"

	"github.com/valyala/fasthttp"
	"gorm.io/gorm"

	dbpkg "swiftroute/internal/db"
)

// TierFeatures is the static feature table shown per billing tier.
type TierFeatures struct {
	RequestsPerMinute int64    `json:"requests_per_minute"`
	MonthlyQuota      int64    `json:"monthly_quota"`
	Features          []string `json:"features"`
}

var tierFeatureTable = map[string]TierFeatures{
	dbpkg.TierTrial: {
		RequestsPerMinute: dbpkg.RateLimitFor(dbpkg.TierTrial),
		MonthlyQuota:      dbpkg.MonthlyQuotaFor(dbpkg.TierTrial),
		Features:          []string{"route_optimization"},
	},
	dbpkg.TierStarter: {
		RequestsPerMinute: dbpkg.RateLimitFor(dbpkg.TierStarter),
		MonthlyQuota:      dbpkg.MonthlyQuotaFor(dbpkg.TierStarter),
		Features:          []string{"route_optimization", "usage_analytics"},
	},
	dbpkg.TierProfessional: {
		RequestsPerMinute: dbpkg.RateLimitFor(dbpkg.TierProfessional),
		MonthlyQuota:      dbpkg.MonthlyQuotaFor(dbpkg.TierProfessional),
		Features:          []string{"route_optimization", "usage_analytics", "traffic_aware_routing", "priority_support"},
	},
	dbpkg.TierEnterprise: {
		RequestsPerMinute: dbpkg.RateLimitFor(dbpkg.TierEnterprise),
		MonthlyQuota:      dbpkg.MonthlyQuotaFor(dbpkg.TierEnterprise),
		Features:          []string{"route_optimization", "usage_analytics", "traffic_aware_routing", "priority_support", "dedicated_capacity", "sla"},
	},
}

// KeyInfo is the client-visible view of an API key. The plaintext and its
// hash never appear here; only the display prefix does.
type KeyInfo struct {
	ID         uint       `json:"id"`
	Name       string     `json:"name"`
	KeyPrefix  string     `json:"key_prefix"`
	Active     bool       `json:"active"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

func keyInfo(k *dbpkg.APIKey) KeyInfo {
	return KeyInfo{
		ID:         k.ID,
		Name:       k.Name,
		KeyPrefix:  k.KeyPrefix,
		Active:     k.Active,
		CreatedAt:  k.CreatedAt,
		ExpiresAt:  k.ExpiresAt,
		LastUsedAt: k.LastUsedAt,
	}
}

// Profile returns the authenticated client, their key metadata, and the
// static tier feature table.
func Profile(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		identity, ok := MustIdentity(ctx)
		if !ok {
			return
		}

		client, err := dbpkg.FindClientByID(db, identity.ClientID)
		if err != nil {
			if errors.Is(err, dbpkg.ErrClientNotFound) {
				WriteError(ctx, fasthttp.StatusNotFound, CodeClientNotFound, "Client not found", nil)
				return
			}
			WriteInternalError(ctx, err)
			return
		}

		keys, err := dbpkg.ListKeys(db, client.ID)
		if err != nil {
			WriteInternalError(ctx, err)
			return
		}
		keyInfos := make([]KeyInfo, 0, len(keys))
		for i := range keys {
			keyInfos = append(keyInfos, keyInfo(&keys[i]))
		}

		WriteData(ctx, fasthttp.StatusOK, map[string]any{
			"client": map[string]any{
				"id":           client.ID,
				"email":        client.Email,
				"company_name": client.CompanyName,
				"billing_tier": client.BillingTier,
				"active":       client.Active,
				"created_at":   client.CreatedAt,
			},
			"api_keys": keyInfos,
			"tier":     tierFeatureTable[client.BillingTier],
		}, nil)
	}
}
