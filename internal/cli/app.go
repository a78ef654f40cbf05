package cli

import (
	"context"
	"fmt"
	"log"

	"github.com/MikhalGarbuz/analyze-your-life/internal/adapter/chart"
	"github.com/MikhalGarbuz/analyze-your-life/internal/adapter/gonumstats"
	"github.com/MikhalGarbuz/analyze-your-life/internal/adapter/memory"
	"github.com/MikhalGarbuz/analyze-your-life/internal/adapter/notify"
	"github.com/MikhalGarbuz/analyze-your-life/internal/adapter/otel"
	"github.com/MikhalGarbuz/analyze-your-life/internal/adapter/postgres"
	"github.com/MikhalGarbuz/analyze-your-life/internal/analysis"
	"github.com/MikhalGarbuz/analyze-your-life/internal/app"
	"github.com/MikhalGarbuz/analyze-your-life/internal/config"
	"github.com/MikhalGarbuz/analyze-your-life/internal/conversation"
	"github.com/MikhalGarbuz/analyze-your-life/internal/domain"
)

// repositories is the persistence surface both storage backends provide.
type repositories interface {
	domain.ExperimentRepository
	domain.ParameterRepository
	domain.EntryRepository
	domain.UserRepository
}

type metricsExporter interface {
	domain.Metrics
	Close(ctx context.Context) error
}

// AppContext holds all shared dependencies for CLI commands.
type AppContext struct {
	Config *config.Config

	Repos         repositories
	Sessions      domain.SessionRepository
	Conversations conversation.SessionStore
	Metrics       metricsExporter

	Auth         *app.AuthService
	Tokens       *app.TokenService
	Conversation *conversation.Machine
	Experiments  *app.ExperimentService
	Charts       *app.ChartsService
	Analysis     *app.AnalysisService
	Export       *app.ExportService
	Import       *app.ImportService
	Reminders    *app.ReminderService

	closeDB func() error
}

// NewAppContext opens storage and wires every service. An empty
// DATABASE_URL selects the in-memory store.
func NewAppContext(ctx context.Context, cfg *config.Config) (*AppContext, error) {
	a := &AppContext{Config: cfg, closeDB: func() error { return nil }}

	if cfg.DatabaseURL == "" {
		log.Printf("storage: DATABASE_URL not set, using in-memory store")
		db := memory.New()
		a.Repos, a.Sessions, a.Conversations = db, db.NewSessionRepo(), db.NewConversationStore()
	} else {
		db, err := postgres.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.Repos, a.Sessions, a.Conversations = db, postgres.NewSessionRepo(db), postgres.NewConversationStore(db)
		a.closeDB = db.Close
	}

	if cfg.OTel.Active() {
		exp, err := otel.NewExporter(ctx, cfg.OTel)
		if err != nil {
			_ = a.closeDB()
			return nil, fmt.Errorf("failed to start metrics exporter: %w", err)
		}
		a.Metrics = exp
	} else {
		a.Metrics = otel.NewNoOpExporter()
	}

	var notifier domain.Notifier = notify.LogNotifier{}
	if cfg.Reminder.WebhookURL != "" {
		notifier = notify.NewWebhookNotifier(cfg.Reminder.WebhookURL)
	}

	repos := a.Repos
	dispatcher := analysis.NewDispatcher(gonumstats.New(), chart.New(), a.Metrics, analysis.Options{SquaredTerms: cfg.SquaredTerms})
	hour, minute := cfg.Reminder.Clock()

	a.Auth = app.NewAuthService(repos, a.Sessions)
	a.Tokens = app.NewTokenService(cfg.BotJWTSecret)
	a.Experiments = app.NewExperimentService(repos, repos, repos)
	a.Charts = app.NewChartsService(repos, repos, repos)
	a.Analysis = app.NewAnalysisService(repos, repos, repos, dispatcher)
	a.Export = app.NewExportService(a.Experiments)
	a.Import = app.NewImportService(repos, repos, repos)
	a.Reminders = app.NewReminderService(repos, notifier, hour, minute)
	a.Conversation = conversation.New(conversation.Config{
		Experiments: repos,
		Parameters:  repos,
		Entries:     repos,
		Analyzer:    a.Analysis,
		Store:       a.Conversations,
		Metrics:     a.Metrics,
		TTL:         cfg.SessionTTL,
	})
	return a, nil
}

// Close flushes metrics and releases the database.
func (a *AppContext) Close(ctx context.Context) error {
	if err := a.Metrics.Close(ctx); err != nil {
		log.Printf("metrics: close: %v", err)
	}
	return a.closeDB()
}
