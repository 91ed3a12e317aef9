package handlers

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	dbpkg "swiftroute/internal/db"
)

const (
	sessionCookie = "swiftroute_session"
	sessionTTL    = 24 * time.Hour
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// DashboardLogin checks the client's dashboard password and opens a session.
// Every failure mode responds identically so the endpoint cannot confirm
// which emails exist.
func DashboardLogin(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		var req loginRequest
		if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
			WriteError(ctx, fasthttp.StatusBadRequest, CodeInvalidRequest, "Invalid JSON body", nil)
			return
		}
		req.Email = strings.ToLower(strings.TrimSpace(req.Email))
		if req.Email == "" || req.Password == "" {
			WriteError(ctx, fasthttp.StatusBadRequest, CodeInvalidRequest, "Email and password are required", nil)
			return
		}

		client, err := dbpkg.FindClientByEmail(db, req.Email)
		if err != nil {
			if errors.Is(err, dbpkg.ErrClientNotFound) {
				writeLoginRejected(ctx)
				return
			}
			WriteInternalError(ctx, err)
			return
		}
		if client.DashboardPasswordHash == "" {
			writeLoginRejected(ctx)
			return
		}
		if bcrypt.CompareHashAndPassword([]byte(client.DashboardPasswordHash), []byte(req.Password)) != nil {
			writeLoginRejected(ctx)
			return
		}

		token, err := dbpkg.NewSessionToken()
		if err != nil {
			WriteInternalError(ctx, err)
			return
		}
		expires := time.Now().Add(sessionTTL)
		session := &dbpkg.DashboardSession{Token: token, ClientID: client.ID, ExpiresAt: expires}
		if err := db.Create(session).Error; err != nil {
			WriteInternalError(ctx, err)
			return
		}

		setSessionCookie(ctx, token, expires)
		WriteData(ctx, fasthttp.StatusOK, map[string]any{
			"token":      token,
			"expires_at": expires.UTC().Format(time.RFC3339),
		}, nil)
	}
}

func writeLoginRejected(ctx *fasthttp.RequestCtx) {
	WriteError(ctx, fasthttp.StatusUnauthorized, CodeInvalidRequest, "Invalid email or password", nil)
}

func setSessionCookie(ctx *fasthttp.RequestCtx, token string, expires time.Time) {
	c := fasthttp.AcquireCookie()
	defer fasthttp.ReleaseCookie(c)
	c.SetKey(sessionCookie)
	c.SetValue(token)
	c.SetPath("/dashboard")
	c.SetExpire(expires)
	c.SetHTTPOnly(true)
	c.SetSameSite(fasthttp.CookieSameSiteLaxMode)
	ctx.Response.Header.SetCookie(c)
}

// DashboardLogout deletes the session. Logging out with no session is fine.
func DashboardLogout(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		if token := sessionToken(ctx); token != "" {
			if err := db.Where("token = ?", token).Delete(&dbpkg.DashboardSession{}).Error; err != nil {
				WriteInternalError(ctx, err)
				return
			}
		}
		setSessionCookie(ctx, "", time.Now().Add(-time.Hour))
		WriteData(ctx, fasthttp.StatusOK, map[string]any{"logged_out": true}, nil)
	}
}

// DashboardOverview is the single read endpoint behind a dashboard session:
// the billing view, key metadata, and the daily usage trend from the rollups.
func DashboardOverview(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		client, ok := sessionClient(ctx, db)
		if !ok {
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

		rollups, err := dbpkg.DailyTrend(db, client.ID, 30)
		if err != nil {
			WriteInternalError(ctx, err)
			return
		}
		trend := make([]dbpkg.DailyUsage, 0, len(rollups))
		for _, r := range rollups {
			day := dbpkg.DailyUsage{
				Date:       r.Day.UTC().Format("2006-01-02"),
				Requests:   r.Requests,
				Successful: r.Successful,
			}
			if r.Requests > 0 {
				day.SuccessRate = float64(r.Successful) / float64(r.Requests)
				day.AvgResponseTimeMs = float64(r.TotalResponseMs) / float64(r.Requests)
			}
			trend = append(trend, day)
		}

		WriteData(ctx, fasthttp.StatusOK, map[string]any{
			"client": map[string]any{
				"email":        client.Email,
				"company_name": client.CompanyName,
			},
			"subscription": dbpkg.SubscriptionFor(client),
			"api_keys":     keyInfos,
			"daily_trend":  trend,
		}, nil)
	}
}

func sessionToken(ctx *fasthttp.RequestCtx) string {
	if v := ctx.Request.Header.Cookie(sessionCookie); len(v) > 0 {
		return string(v)
	}
	auth := string(ctx.Request.Header.Peek("Authorization"))
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

// sessionClient resolves the dashboard session to its client, writing the
// error envelope itself when the session is missing, expired, or orphaned.
func sessionClient(ctx *fasthttp.RequestCtx, db *gorm.DB) (*dbpkg.APIClient, bool) {
	token := sessionToken(ctx)
	if token == "" {
		WriteError(ctx, fasthttp.StatusUnauthorized, CodeInvalidRequest, "Dashboard session required", nil)
		return nil, false
	}

	var session dbpkg.DashboardSession
	err := db.Where("token = ?", token).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteError(ctx, fasthttp.StatusUnauthorized, CodeInvalidRequest, "Invalid or expired session", nil)
			return nil, false
		}
		WriteInternalError(ctx, err)
		return nil, false
	}
	if session.ExpiresAt.Before(time.Now()) {
		// Best effort; the retention worker reaps expired sessions too.
		if err := db.Delete(&session).Error; err != nil {
			log.WithError(err).Warn("failed to delete expired dashboard session")
		}
		WriteError(ctx, fasthttp.StatusUnauthorized, CodeInvalidRequest, "Invalid or expired session", nil)
		return nil, false
	}

	client, err := dbpkg.FindClientByID(db, session.ClientID)
	if err != nil {
		if errors.Is(err, dbpkg.ErrClientNotFound) {
			WriteError(ctx, fasthttp.StatusUnauthorized, CodeInvalidRequest, "Invalid or expired session", nil)
			return nil, false
		}
		WriteInternalError(ctx, err)
		return nil, false
	}
	return client, true
}
