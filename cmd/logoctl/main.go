// Command logoctl is the operator and scripting CLI: it generates logos
// through the public API and runs maintenance tasks against the database.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"kiranalogo/internal/infra"
)

var rootCmd = &cobra.Command{
	Use:           "logoctl",
	Short:         "KiranaLogo command line",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func databaseURL() (string, error) {
	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		return "", errors.New("DATABASE_URL is required")
	}
	return dbURL, nil
}

// openRunner connects to DATABASE_URL. The caller closes the pool.
func openRunner(ctx context.Context, name string) (*pgxpool.Pool, *infra.SQLRunner, infra.Logger, error) {
	logger := infra.NewLogger("cli").With().Str("cmd", name).Logger()
	dbURL, err := databaseURL()
	if err != nil {
		return nil, nil, logger, err
	}
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := pgxpool.New(connectCtx, dbURL)
	if err != nil {
		return nil, nil, logger, fmt.Errorf("failed to connect database: %w", err)
	}
	return pool, infra.NewSQLRunner(pool, logger), logger, nil
}
