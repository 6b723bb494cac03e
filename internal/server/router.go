package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/snippetx/backend/internal/auth"
	"github.com/snippetx/backend/internal/ratelimit"
	"github.com/snippetx/backend/internal/snippets"
	"github.com/snippetx/backend/internal/syncer"
)

const callerContextKey = "snippetx_caller_id"

var (
	errMissingStore         = errors.New("snippet store dependency required")
	errMissingLimiter       = errors.New("rate limiter dependency required")
	errMissingReconciler    = errors.New("sync reconciler dependency required")
	errMissingAuthenticator = errors.New("authenticator dependency required")
)

// Dependencies lists everything the HTTP surface needs. All state is owned
// by the injected components; the handler itself is stateless.
type Dependencies struct {
	Store         *snippets.Store
	Limiter       *ratelimit.Limiter
	Reconciler    *syncer.Reconciler
	Authenticator *auth.Authenticator
	Logger        *zap.Logger
}

// NewHTTPHandler wires the gin router: CORS, per-tier rate limiting,
// credential checks, and the snippet/search/sync endpoints.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Store == nil {
		return nil, errMissingStore
	}
	if deps.Limiter == nil {
		return nil, errMissingLimiter
	}
	if deps.Reconciler == nil {
		return nil, errMissingReconciler
	}
	if deps.Authenticator == nil {
		return nil, errMissingAuthenticator
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"vscode-file://vscode-app", "http://localhost:4000"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Api-Key"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		store:         deps.Store,
		limiter:       deps.Limiter,
		reconciler:    deps.Reconciler,
		authenticator: deps.Authenticator,
		logger:        logger,
	}

	router.GET("/healthz", handler.handleHealth)
	router.GET("/api", handler.handleDescriptor)
	router.POST("/auth/token", handler.handleTokenExchange)

	api := router.Group("/api/v1")
	api.Use(handler.rateLimit(ratelimit.TierGeneral))
	api.Use(handler.authorizeRequest)

	api.GET("/snippets", handler.handleList)
	api.GET("/snippets/search", handler.handleSearch)
	api.GET("/snippets/languages", handler.handleLanguages)
	api.GET("/snippets/:id", handler.handleGet)
	api.GET("/sync/mirror", handler.handlePullMirror)
	api.GET("/sync/status", handler.handleSyncStatus)

	writes := api.Group("/")
	writes.Use(handler.rateLimit(ratelimit.TierStrictWrite))
	writes.POST("/snippets", handler.handleCreate)
	writes.PUT("/snippets/:id", handler.handleUpdate)
	writes.DELETE("/snippets/:id", handler.handleDelete)
	writes.POST("/snippets/:id/favorite", handler.handleToggleFavorite)
	writes.POST("/snippets/bulk", handler.handleBulkImport)
	writes.POST("/sync/mirror", handler.handlePushMirror)
	writes.POST("/sync/test", handler.handleMirrorTest)

	return router, nil
}

type httpHandler struct {
	store         *snippets.Store
	limiter       *ratelimit.Limiter
	reconciler    *syncer.Reconciler
	authenticator *auth.Authenticator
	logger        *zap.Logger
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *httpHandler) handleDescriptor(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "SnippetX API",
		"version":     "1.0.0",
		"description": "Code snippet management API",
		"endpoints": gin.H{
			"snippets": gin.H{
				"create":    "POST /api/v1/snippets",
				"list":      "GET /api/v1/snippets",
				"search":    "GET /api/v1/snippets/search",
				"languages": "GET /api/v1/snippets/languages",
				"get":       "GET /api/v1/snippets/:id",
				"update":    "PUT /api/v1/snippets/:id",
				"delete":    "DELETE /api/v1/snippets/:id",
				"favorite":  "POST /api/v1/snippets/:id/favorite",
				"bulk":      "POST /api/v1/snippets/bulk",
			},
			"sync": gin.H{
				"push":   "POST /api/v1/sync/mirror",
				"pull":   "GET /api/v1/sync/mirror",
				"status": "GET /api/v1/sync/status",
				"test":   "POST /api/v1/sync/test",
			},
		},
	})
}

type tokenRequestPayload struct {
	APIKey string `json:"api_key"`
}

type tokenResponsePayload struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

func (h *httpHandler) handleTokenExchange(c *gin.Context) {
	var request tokenRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || request.APIKey == "" {
		writeErrorPayload(c, http.StatusBadRequest, "invalid_request", "api_key is required")
		return
	}

	token, expiresIn, err := h.authenticator.ExchangeAPIKey(request.APIKey)
	if err != nil {
		h.logger.Warn("api key exchange rejected", zap.Error(err))
		writeErrorPayload(c, http.StatusUnauthorized, "unauthorized", "invalid api key")
		return
	}

	c.JSON(http.StatusOK, tokenResponsePayload{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
	})
}
