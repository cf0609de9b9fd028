// Package httpapi serves the operational HTTP API: version history,
// downloads and the upload ledger.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/dmitrijs2005/casevault/internal/logging"
	"github.com/dmitrijs2005/casevault/internal/server/auth"
	"github.com/dmitrijs2005/casevault/internal/server/models"
	"github.com/dmitrijs2005/casevault/internal/server/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Documents is the read side used by the API.
type Documents interface {
	ListVersions(ctx context.Context, caller auth.Caller, documentID string) ([]*models.DocumentVersion, error)
	DownloadURL(ctx context.Context, caller auth.Caller, versionID string) (string, *models.DocumentVersion, error)
	ListIntents(ctx context.Context, caller auth.Caller, q services.IntentQuery) (*services.IntentPage, error)
}

// Sweeper settles stale upload intents on demand.
type Sweeper interface {
	SweepIntents(ctx context.Context, opts services.SweepOptions) (*services.SweepReport, error)
}

type handler struct {
	documents Documents
	sweeper   Sweeper
	logger    logging.Logger
	now       func() time.Time
}

// NewRouter builds the chi router. Everything under /api/v1 requires a
// bearer token signed with secretKey.
func NewRouter(logger logging.Logger, secretKey string, documents Documents, sweeper Sweeper) http.Handler {
	h := &handler{
		documents: documents,
		sweeper:   sweeper,
		logger:    logger,
		now:       time.Now,
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(loggerMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.RequestSize(1 << 20))

	r.Get("/health", h.health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(bearerAuth([]byte(secretKey), h))

		r.Get("/documents/{documentID}/versions", h.listVersions)
		r.Get("/document-versions/{versionID}/download", h.download)
		r.Get("/upload-intents", h.listIntents)
		r.Post("/upload-intents/sweep", h.sweep)
	})

	return r
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, HealthResponse{Status: "ok", Timestamp: h.now()})
}
