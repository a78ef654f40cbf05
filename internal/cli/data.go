package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/MikhalGarbuz/analyze-your-life/internal/adapter/postgres"
	"github.com/MikhalGarbuz/analyze-your-life/internal/app"
	"github.com/MikhalGarbuz/analyze-your-life/internal/config"
	"github.com/MikhalGarbuz/analyze-your-life/internal/domain"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the PostgreSQL schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required")
		}
		db, err := postgres.Open(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
		return db.Close()
	},
}

var importCmd = &cobra.Command{
	Use:   "import-csv FILE",
	Short: "Import a CSV file as a new experiment",
	Long: `Import a CSV file as a new experiment.

The first row names the parameters; every following row is one day.
Columns holding only + and - become boolean, integer columns with few
distinct values become classes, everything else is numeric.

Examples:
  ayl import-csv sleep.csv --user alice --name "Sleep Study" --goals mood
  ayl import-csv log.csv --user alice --name Log --start 2024-01-01`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

var exportCmd = &cobra.Command{
	Use:   "export EXPERIMENT_ID",
	Short: "Export an experiment as an .xlsx workbook",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

var remindCmd = &cobra.Command{
	Use:   "remind",
	Short: "Send reminders to users with nothing logged for a day",
	Args:  cobra.NoArgs,
	RunE:  runRemind,
}

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var userCreateCmd = &cobra.Command{
	Use:   "create USERNAME",
	Short: "Create a password user",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserCreate,
}

var (
	flagUser     string
	importName   string
	importGoals  []string
	importStart  string
	exportOut    string
	remindDay    string
	userPassword string
)

func init() {
	rootCmd.AddCommand(migrateCmd, importCmd, exportCmd, remindCmd, userCmd)
	userCmd.AddCommand(userCreateCmd)

	for _, c := range []*cobra.Command{importCmd, exportCmd} {
		c.Flags().StringVar(&flagUser, "user", "", "Username owning the experiment")
		_ = c.MarkFlagRequired("user")
	}
	importCmd.Flags().StringVar(&importName, "name", "", "Experiment name")
	importCmd.Flags().StringSliceVar(&importGoals, "goals", nil, "Columns to import as goals")
	importCmd.Flags().StringVar(&importStart, "start", "", "Date of the first row (YYYY-MM-DD); default ends today")
	_ = importCmd.MarkFlagRequired("name")

	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output file (default <experiment name>.xlsx)")
	remindCmd.Flags().StringVar(&remindDay, "day", "", "Day to check (YYYY-MM-DD); default today")
	userCreateCmd.Flags().StringVar(&userPassword, "password", "", "Password (at least 8 characters)")
	_ = userCreateCmd.MarkFlagRequired("password")
}

func lookupUser(ctx context.Context, a *AppContext, username string) (*domain.User, error) {
	u, err := a.Repos.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("user %q not found", username)
	}
	return u, nil
}

func runImport(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck

	ctx := cmd.Context()
	return withApp(ctx, func(a *AppContext) error {
		u, err := lookupUser(ctx, a, flagUser)
		if err != nil {
			return err
		}
		res, err := a.Import.Import(ctx, u.ID, importName, f, app.ImportOptions{Goals: importGoals, Start: importStart})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported experiment %d %q: %d parameters, %d entries (%s to %s)\n",
			res.Experiment.ID, res.Experiment.Name, len(res.Parameters), res.Entries, res.FirstDay, res.LastDay)
		return nil
	})
}

func runExport(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid experiment id %q", args[0])
	}

	ctx := cmd.Context()
	return withApp(ctx, func(a *AppContext) error {
		u, err := lookupUser(ctx, a, flagUser)
		if err != nil {
			return err
		}
		name, data, err := a.Export.Export(ctx, u.ID, id)
		if err != nil {
			return err
		}
		out := exportOut
		if out == "" {
			out = name
		}
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", out)
		return nil
	})
}

func runRemind(cmd *cobra.Command, args []string) error {
	day := remindDay
	if day == "" {
		day = domain.LocalDay(time.Now())
	} else if _, err := time.Parse(domain.DayLayout, day); err != nil {
		return fmt.Errorf("invalid day %q (use YYYY-MM-DD)", day)
	}

	ctx := cmd.Context()
	return withApp(ctx, func(a *AppContext) error {
		n, err := a.Reminders.RemindMissing(ctx, day)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Reminded %d users for %s\n", n, day)
		return nil
	})
}

func runUserCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	return withApp(ctx, func(a *AppContext) error {
		u, err := a.Auth.CreateUser(ctx, args[0], userPassword)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created user %d %q\n", u.ID, u.Username)
		return nil
	})
}
