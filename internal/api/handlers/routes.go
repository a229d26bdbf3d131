package handlers

import (
	"net/http"
	"time"

	"github.com/dompet-app/dompet/internal/api/middleware"
	"github.com/rs/zerolog"
)

// Handlers groups the endpoint handlers served by NewRouter.
type Handlers struct {
	Auth         *AuthHandler
	Transactions *TransactionsHandler
	Reports      *ReportsHandler
	Jobs         *JobsHandler
	Assistant    *AssistantHandler
}

// NewRouter registers every route and wraps the mux in the standard
// middleware chain. Everything except health, register and login requires a
// bearer token.
func NewRouter(h Handlers, authenticator middleware.Authenticator, log zerolog.Logger) http.Handler {
	mux := http.NewServeMux()
	protected := middleware.Auth(authenticator)
	secure := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, protected(fn))
	}

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Auth endpoints
	mux.HandleFunc("POST /api/auth/register", h.Auth.Register)
	mux.HandleFunc("POST /api/auth/login", h.Auth.Login)
	secure("GET /api/auth/profile", h.Auth.Profile)
	secure("PUT /api/auth/profile", h.Auth.UpdateProfile)
	secure("PUT /api/auth/password", h.Auth.ChangePassword)
	secure("DELETE /api/auth/account", h.Auth.DeleteAccount)

	// Transactions endpoints
	secure("GET /api/transactions", h.Transactions.ListTransactions)
	secure("POST /api/transactions", h.Transactions.CreateTransaction)
	secure("POST /api/transactions/auto", h.Transactions.AutoTransaction)
	secure("GET /api/transactions/{id}", h.Transactions.GetTransaction)
	secure("PUT /api/transactions/{id}", h.Transactions.UpdateTransaction)
	secure("DELETE /api/transactions/{id}", h.Transactions.DeleteTransaction)

	// Reports endpoints
	secure("GET /api/dashboard", h.Reports.Dashboard)
	secure("GET /api/reports/monthly", h.Reports.Monthly)
	secure("GET /api/reports/export", h.Reports.Export)

	// Jobs endpoints
	secure("POST /api/exports", h.Jobs.EnqueueExport)
	secure("GET /api/jobs", h.Jobs.ListJobs)
	secure("GET /api/jobs/{id}", h.Jobs.GetJob)

	// Assistant endpoints
	secure("POST /api/assistant", h.Assistant.Ask)
	secure("GET /api/categories", h.Assistant.ListCategories)

	return middleware.Chain(mux,
		middleware.Recovery(log),
		middleware.RequestID,
		middleware.Logger(log),
		middleware.CORS,
	)
}
