package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"kiranalogo/internal/adapter/repo"
	"kiranalogo/internal/domain"
	"kiranalogo/internal/ledger"
)

var creditsCmd = &cobra.Command{
	Use:   "credits",
	Short: "Inspect and adjust account credit balances",
}

var creditsGrantCmd = &cobra.Command{
	Use:   "grant",
	Short: "Add credits to an account",
	Long:  "Adds credits with a grant ledger entry. The account is selected by --id or --email.",
	RunE:  runCreditsGrant,
}

var (
	grantID     string
	grantEmail  string
	grantAmount int
	grantReason string
)

func init() {
	creditsGrantCmd.Flags().StringVar(&grantID, "id", "", "account ID (UUID)")
	creditsGrantCmd.Flags().StringVar(&grantEmail, "email", "", "account email")
	creditsGrantCmd.Flags().IntVar(&grantAmount, "amount", 0, "credits to add (required, > 0)")
	creditsGrantCmd.Flags().StringVar(&grantReason, "reason", "manual grant", "reference stored on the ledger entry")
	creditsGrantCmd.MarkFlagsOneRequired("id", "email")
	creditsGrantCmd.MarkFlagsMutuallyExclusive("id", "email")
	if err := creditsGrantCmd.MarkFlagRequired("amount"); err != nil {
		panic(fmt.Sprintf("failed to mark amount flag as required: %v", err))
	}

	creditsCmd.AddCommand(creditsGrantCmd)
	rootCmd.AddCommand(creditsCmd)
}

func runCreditsGrant(cmd *cobra.Command, _ []string) error {
	if grantAmount <= 0 {
		return errors.New("--amount must be positive")
	}
	pool, runner, logger, err := openRunner(cmd.Context(), "credits")
	if err != nil {
		return err
	}
	defer pool.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	accounts := repo.NewAccountRepository(runner)
	var account *domain.Account
	if id := strings.TrimSpace(grantID); id != "" {
		account, err = accounts.GetByID(ctx, id)
	} else {
		account, err = accounts.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(grantEmail)))
	}
	if errors.Is(err, domain.ErrNotFound) {
		return errors.New("account not found")
	}
	if err != nil {
		return fmt.Errorf("failed to load account: %w", err)
	}

	svc := ledger.NewService(repo.NewLedgerRepository(runner), logger)
	balance, err := svc.Credit(ctx, account.ID, domain.EntryGrant, grantAmount, strings.TrimSpace(grantReason))
	if err != nil {
		return fmt.Errorf("failed to grant credits: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Granted %d credits to %s (%s); balance is now %d\n", grantAmount, account.Email, account.ID, balance)
	return nil
}
