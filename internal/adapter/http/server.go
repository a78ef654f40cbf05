package adapthttp

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MikhalGarbuz/analyze-your-life/internal/app"
	"github.com/MikhalGarbuz/analyze-your-life/internal/conversation"
	"github.com/MikhalGarbuz/analyze-your-life/internal/domain"
)

// Services bundles the application services the HTTP adapter drives.
type Services struct {
	Auth         *app.AuthService
	Tokens       *app.TokenService
	Conversation *conversation.Machine
	Experiments  *app.ExperimentService
	Charts       *app.ChartsService
	Analysis     *app.AnalysisService
	Export       *app.ExportService
	Import       *app.ImportService
}

// Server is the driving HTTP adapter that routes requests to application
// services.
type Server struct {
	svc    Services
	sso    *SSO
	webDir string

	disableAuth bool
	testUser    domain.User
}

// New creates a Server wired to the given application services.
func New(svc Services, webDir string) *Server {
	return &Server{svc: svc, webDir: webDir}
}

// WithSSO enables OpenID Connect login.
func (s *Server) WithSSO(sso *SSO) *Server {
	s.sso = sso
	return s
}

// WithoutAuth treats every request as coming from user. Tests only.
func (s *Server) WithoutAuth(user domain.User) *Server {
	s.disableAuth = true
	s.testUser = user
	return s
}

// Handler returns the root http.Handler for the application.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(withNoCache)

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		})

		api.Route("/auth", func(a chi.Router) {
			a.Post("/login", s.handleLogin)
			a.Post("/logout", s.handleLogout)
			a.Post("/setup", s.handleSetupUser)
			a.Get("/config", s.handleConfig)
			a.Get("/sso/login", s.handleSSOLogin)
			a.Get("/sso/callback", s.handleSSOCallback)
		})

		api.Group(func(p chi.Router) {
			p.Use(s.authMiddleware)

			p.Get("/me", s.handleMe)
			p.Put("/me/chat", s.handleLinkChat)
			p.Post("/me/token", s.handleIssueToken)

			p.Get("/conversation", s.handleConversationGet)
			p.Post("/conversation", s.handleConversationPost)
			p.Delete("/conversation", s.handleConversationCancel)

			p.Get("/experiments", s.handleExperimentsList)
			p.Post("/experiments/import", s.handleImport)
			p.Route("/experiments/{id}", func(e chi.Router) {
				e.Get("/", s.handleExperimentGet)
				e.Get("/entries", s.handleExperimentEntries)
				e.Get("/series", s.handleExperimentSeries)
				e.Get("/correlation", s.handleCorrelation)
				e.Get("/regression/{target}", s.handleRegression)
				e.Get("/export", s.handleExport)
			})
		})
	})

	r.Handle("/*", spaFromDisk(s.webDir))
	return r
}
