package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	adapthttp "github.com/MikhalGarbuz/analyze-your-life/internal/adapter/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the daily reminder loop",
	Long: `Start the HTTP API, the web UI and the daily reminder loop.

Examples:
  ayl serve                 # Listen on $ADDR (default :8080)
  ayl serve --no-reminders  # Serve without sending reminders`,
	RunE: runServe,
}

var serveNoReminders bool

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().BoolVar(&serveNoReminders, "no-reminders", false, "Do not run the reminder loop")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return withApp(ctx, func(a *AppContext) error {
		srv := adapthttp.New(adapthttp.Services{
			Auth:         a.Auth,
			Tokens:       a.Tokens,
			Conversation: a.Conversation,
			Experiments:  a.Experiments,
			Charts:       a.Charts,
			Analysis:     a.Analysis,
			Export:       a.Export,
			Import:       a.Import,
		}, a.Config.WebDir)

		if oc := a.Config.OIDC; oc.Enabled {
			sso, err := adapthttp.NewSSO(ctx, oc.Issuer, oc.ClientID, oc.ClientSecret, oc.RedirectURL)
			if err != nil {
				return err
			}
			srv.WithSSO(sso)
		}

		httpSrv := &http.Server{
			Addr:              a.Config.Addr,
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			log.Printf("listening on %s", a.Config.Addr)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return httpSrv.Shutdown(shutdownCtx)
		})
		g.Go(func() error {
			pruneSessions(gctx, a)
			return nil
		})
		if !serveNoReminders {
			g.Go(func() error { return a.Reminders.Run(gctx) })
		}
		return g.Wait()
	})
}

// pruneSessions deletes expired login sessions hourly until ctx ends.
func pruneSessions(ctx context.Context, a *AppContext) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.Sessions.DeleteExpired(ctx); err != nil {
				log.Printf("sessions: prune: %v", err)
			}
		}
	}
}
