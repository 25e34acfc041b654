package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/kevinaaaquil/circulation/circulation"
	"github.com/kevinaaaquil/circulation/identity"
	"github.com/kevinaaaquil/circulation/middleware"
	"github.com/kevinaaaquil/circulation/service"
)

// Deps are the collaborators of the HTTP surface.
type Deps struct {
	Engine      *circulation.Engine
	Oracle      *identity.JWTOracle
	Reports     *service.Reports
	Logger      *slog.Logger
	CORSOrigins []string
	Retry       []RetryOption
	// AccessLog enables chi's request logger.
	AccessLog bool
}

// base carries what every handler needs to run an engine call.
type base struct {
	logger *slog.Logger
	retry  []RetryOption
}

// run executes fn with backoff on StoreUnavailable.
func (b base) run(r *http.Request, fn func(ctx context.Context) error) error {
	return RetryWithExponentialBackoff(r.Context(), fn, b.retry...)
}

func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	b := base{logger: d.Logger, retry: d.Retry}
	authHandler := &AuthHandler{base: b, Engine: d.Engine, Tokens: d.Oracle}
	booksHandler := &BooksHandler{base: b, Engine: d.Engine}
	loansHandler := &LoansHandler{base: b, Engine: d.Engine, Reports: d.Reports}
	reviewsHandler := &ReviewsHandler{base: b, Engine: d.Engine}
	usersHandler := &UsersHandler{base: b, Engine: d.Engine}

	r := chi.NewRouter()
	r.Use(middleware.CORS(d.CORSOrigins))
	if d.AccessLog {
		r.Use(chimw.Logger)
	}
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", authHandler.Login)
		r.Get("/books/{id}/reviews", booksHandler.Reviews)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(d.Oracle))

			r.Post("/books", booksHandler.Create)
			r.Get("/books/{id}", booksHandler.Get)
			r.Delete("/books/{id}", booksHandler.Delete)

			r.Post("/loans", loansHandler.Issue)
			r.Get("/loans", loansHandler.List)
			r.Get("/loans/mine", loansHandler.Mine)
			r.Get("/loans/overdue", loansHandler.Overdue)
			r.Post("/loans/overdue/export", loansHandler.Export)
			r.Post("/loans/overdue/notices", loansHandler.Notices)
			r.Post("/loans/{id}/return", loansHandler.Return)

			r.Get("/reviews/eligible", reviewsHandler.Eligible)
			r.Get("/reviews/pending", reviewsHandler.Pending)
			r.Post("/reviews", reviewsHandler.Submit)
			r.Post("/reviews/{id}/moderate", reviewsHandler.Moderate)

			r.Post("/users", usersHandler.Create)
			r.Get("/users", usersHandler.List)
			r.Patch("/users/{id}/role", usersHandler.UpdateRole)
			r.Post("/users/{id}/toggle", usersHandler.Toggle)
		})
	})
	return r
}
