package handlers

import (
	"encoding/json"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	dbpkg "swiftroute/internal/db"
	httpctx "swiftroute/internal/http/ctx"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&dbpkg.APIClient{},
		&dbpkg.APIKey{},
		&dbpkg.UsageRecord{},
		&dbpkg.RateCounter{},
		&dbpkg.UsageRollup{},
		&dbpkg.DashboardSession{},
	))
	return db
}

func authedCtx(method, uri string, client *dbpkg.APIClient) *fasthttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(uri)
	httpctx.SetRequestID(ctx, "req_1_cccccccc")
	httpctx.SetIdentity(ctx, &dbpkg.ClientIdentity{
		ClientID:    client.ID,
		Email:       client.Email,
		BillingTier: client.BillingTier,
	})
	return ctx
}

func TestKeyInfoNeverExposesSecrets(t *testing.T) {
	plaintext := "sk_9c2f1e8a7b6d5c4e3f2a1b0c9d8e7f6a5b4c3d2e1f0a9b8c7d6e5f4a3b2c1d0e"
	key := &dbpkg.APIKey{
		ID:        1,
		Name:      "Production",
		KeyHash:   dbpkg.HashKey(plaintext),
		KeyPrefix: plaintext[:dbpkg.KeyPrefixLen],
		Active:    true,
	}

	body, err := json.Marshal(keyInfo(key))
	require.NoError(t, err)

	assert.NotContains(t, string(body), plaintext)
	assert.NotContains(t, string(body), key.KeyHash)
	assert.NotContains(t, string(body), "key_hash")
	assert.Contains(t, string(body), key.KeyPrefix)
}

func TestCreatedKeyNotReadableAfterwards(t *testing.T) {
	db := setupTestDB(t)
	client, err := dbpkg.CreateClient(db, "owner@acme.test", "Acme", dbpkg.TierStarter)
	require.NoError(t, err)

	ctx := authedCtx(fasthttp.MethodPost, "/api/v1/keys", client)
	ctx.Request.SetBodyString(`{"name":"Production"}`)
	CreateKey(db)(ctx)

	require.Equal(t, fasthttp.StatusCreated, ctx.Response.StatusCode())

	var created struct {
		Data struct {
			APIKey string `json:"api_key"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &created))
	plaintext := created.Data.APIKey
	require.NotEmpty(t, plaintext)

	// The creation response is the only place the plaintext ever appears.
	ctx = authedCtx(fasthttp.MethodGet, "/api/v1/profile", client)
	Profile(db)(ctx)
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.NotContains(t, string(ctx.Response.Body()), plaintext)
	assert.Contains(t, string(ctx.Response.Body()), plaintext[:dbpkg.KeyPrefixLen])
}

func TestDeleteKeyCrossClientNotFound(t *testing.T) {
	db := setupTestDB(t)
	owner, err := dbpkg.CreateClient(db, "owner@acme.test", "Acme", dbpkg.TierStarter)
	require.NoError(t, err)
	other, err := dbpkg.CreateClient(db, "other@acme.test", "Other", dbpkg.TierStarter)
	require.NoError(t, err)

	_, key, err := dbpkg.CreateKey(db, owner.ID, "Production", nil)
	require.NoError(t, err)

	// Another client gets not-found, never a distinguishing forbidden.
	ctx := authedCtx(fasthttp.MethodDelete, "/api/v1/keys/"+strconv.Itoa(int(key.ID)), other)
	ctx.SetUserValue("id", strconv.Itoa(int(key.ID)))
	DeleteKey(db)(ctx)

	assert.Equal(t, fasthttp.StatusNotFound, ctx.Response.StatusCode())
	assert.Contains(t, string(ctx.Response.Body()), "KEY_NOT_FOUND")

	var reloaded dbpkg.APIKey
	require.NoError(t, db.First(&reloaded, key.ID).Error)
	assert.True(t, reloaded.Active)

	// The owner succeeds, and deactivating again still succeeds.
	for i := 0; i < 2; i++ {
		ctx = authedCtx(fasthttp.MethodDelete, "/api/v1/keys/"+strconv.Itoa(int(key.ID)), owner)
		ctx.SetUserValue("id", strconv.Itoa(int(key.ID)))
		DeleteKey(db)(ctx)
		assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	}

	require.NoError(t, db.First(&reloaded, key.ID).Error)
	assert.False(t, reloaded.Active)
}
