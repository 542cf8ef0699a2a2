package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"kiranalogo/internal/infra/credentials"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage provider API tokens stored in the database",
}

var tokenSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Store or rotate a provider API token",
	Long:  "Stores the token in integration_tokens. Running services pick it up on their next provider call without a restart.",
	RunE:  runTokenSet,
}

var (
	tokenProvider string
	tokenValue    string
	tokenNote     string
)

func init() {
	tokenSetCmd.Flags().StringVar(&tokenProvider, "provider", credentials.ProviderReplicate, "provider to configure")
	tokenSetCmd.Flags().StringVar(&tokenValue, "token", "", "API token (falls back to REPLICATE_API_TOKEN)")
	tokenSetCmd.Flags().StringVar(&tokenNote, "note", "", "free-form note kept with the token")

	tokenCmd.AddCommand(tokenSetCmd)
	rootCmd.AddCommand(tokenCmd)
}

func runTokenSet(cmd *cobra.Command, _ []string) error {
	provider := strings.ToLower(strings.TrimSpace(tokenProvider))
	if provider != credentials.ProviderReplicate {
		return fmt.Errorf("unsupported provider %q", tokenProvider)
	}
	token := strings.TrimSpace(tokenValue)
	if token == "" {
		token = strings.TrimSpace(os.Getenv("REPLICATE_API_TOKEN"))
	}
	if token == "" {
		return errors.New("token is required via --token or REPLICATE_API_TOKEN")
	}

	pool, runner, _, err := openRunner(cmd.Context(), "token")
	if err != nil {
		return err
	}
	defer pool.Close()

	props := map[string]any{"updated_by": "logoctl"}
	if tokenNote != "" {
		props["note"] = tokenNote
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()
	if err := credentials.NewStore(runner).SetToken(ctx, provider, token, props); err != nil {
		return fmt.Errorf("failed to persist %s token: %w", provider, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s token stored successfully\n", provider)
	return nil
}
