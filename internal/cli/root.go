// Package cli implements the ayl command line.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MikhalGarbuz/analyze-your-life/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "ayl",
	Short: "Personal experiment tracker",
	Long: `ayl tracks personal experiments: define the variables you care about,
log them daily, and find out which habits move your goals.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withApp loads configuration, builds an AppContext, runs fn and closes
// the context.
func withApp(ctx context.Context, fn func(*AppContext) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a, err := NewAppContext(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(context.Background()) }()
	return fn(a)
}
