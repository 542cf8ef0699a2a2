package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"

	"kiranalogo/internal/domain"
	"kiranalogo/internal/infra"
)

// ProviderGumroad identifies sales confirmed by the hosted checkout.
const ProviderGumroad = "gumroad"

// HistoryLimit bounds the purchase and usage listings.
const HistoryLimit = 50

// NoPromptText stands in for usage rows whose prediction kept no prompt.
const NoPromptText = "No prompt provided"

var jakarta = time.FixedZone("WIB", 7*60*60)

// Ledger is the subset of the credit ledger billing depends on.
type Ledger interface {
	ConfirmPurchase(ctx context.Context, p *domain.Purchase) (int, bool, error)
	Purchases(ctx context.Context, accountID string, limit int) ([]domain.Purchase, error)
}

// AccountLookup resolves the buyer of a sale.
type AccountLookup interface {
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
}

// UsageSource lists the generations charged to an account.
type UsageSource interface {
	ListSucceededByAccount(ctx context.Context, accountID string, limit int) ([]domain.Prediction, error)
}

// Sale is a purchase notification from the checkout provider.
type Sale struct {
	SaleID    string
	Email     string
	AccountID string
	Variant   string
	Price     int64
	Currency  string
	Refunded  bool
	Test      bool
}

// SaleResult reports the outcome of a confirmed sale.
type SaleResult struct {
	AccountID string `json:"account_id"`
	Credits   int    `json:"credits"`
	Balance   int    `json:"balance"`
	Applied   bool   `json:"applied"`
}

// PurchaseRow is one line of the purchase history view.
type PurchaseRow struct {
	ID       string `json:"id"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Provider string `json:"provider"`
	Credits  int    `json:"credits"`
	Price    string `json:"price"`
}

// UsageRow is one charged generation.
type UsageRow struct {
	ID     string `json:"id"`
	Date   string `json:"date"`
	Time   string `json:"time"`
	Prompt string `json:"prompt"`
	Cost   int    `json:"cost"`
}

type Service struct {
	catalog  *Catalog
	ledger   Ledger
	accounts AccountLookup
	usage    UsageSource
	logger   infra.Logger
}

func NewService(catalog *Catalog, ledger Ledger, accounts AccountLookup, usage UsageSource, logger infra.Logger) *Service {
	return &Service{catalog: catalog, ledger: ledger, accounts: accounts, usage: usage, logger: logger}
}

func (s *Service) Catalog() *Catalog { return s.catalog }

// ConfirmSale credits the buyer for a sale. Replayed sale ids are accepted
// and reported with Applied false.
func (s *Service) ConfirmSale(ctx context.Context, sale Sale) (*SaleResult, error) {
	if strings.TrimSpace(sale.SaleID) == "" {
		return nil, fmt.Errorf("sale id required: %w", domain.ErrValidation)
	}
	if sale.Refunded {
		return nil, fmt.Errorf("sale %s is refunded: %w", sale.SaleID, domain.ErrValidation)
	}
	credits, ok := CreditsFromVariant(sale.Variant)
	if !ok {
		return nil, fmt.Errorf("unknown variant %q: %w", sale.Variant, domain.ErrValidation)
	}
	account, err := s.resolveBuyer(ctx, sale)
	if err != nil {
		return nil, err
	}
	balance, applied, err := s.ledger.ConfirmPurchase(ctx, &domain.Purchase{
		AccountID:  account.ID,
		Provider:   ProviderGumroad,
		ExternalID: sale.SaleID,
		Credits:    credits,
		PricePaid:  sale.Price,
		Currency:   strings.ToUpper(sale.Currency),
	})
	if err != nil {
		return nil, err
	}
	if sale.Test {
		s.logger.Warn().Str("sale_id", sale.SaleID).Msg("test sale confirmed")
	}
	return &SaleResult{AccountID: account.ID, Credits: credits, Balance: balance, Applied: applied}, nil
}

func (s *Service) resolveBuyer(ctx context.Context, sale Sale) (*domain.Account, error) {
	if id := strings.TrimSpace(sale.AccountID); id != "" {
		account, err := s.accounts.GetByID(ctx, id)
		if err == nil {
			return account, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}
	email := strings.ToLower(strings.TrimSpace(sale.Email))
	if email == "" {
		return nil, fmt.Errorf("sale %s has no buyer: %w", sale.SaleID, domain.ErrNotFound)
	}
	return s.accounts.GetByEmail(ctx, email)
}

// Purchases lists the caller's most recent purchases formatted for tag.
func (s *Service) Purchases(ctx context.Context, principal domain.Principal, tag language.Tag) ([]PurchaseRow, error) {
	if principal.AccountID == "" {
		return nil, domain.ErrUnauthorized
	}
	items, err := s.ledger.Purchases(ctx, principal.AccountID, HistoryLimit)
	if err != nil {
		return nil, err
	}
	rows := make([]PurchaseRow, 0, len(items))
	for _, p := range items {
		date, clock := stamp(p.CreatedAt)
		rows = append(rows, PurchaseRow{
			ID:       p.ID,
			Date:     date,
			Time:     clock,
			Provider: p.Provider,
			Credits:  p.Credits,
			Price:    FormatPrice(tag, p.Currency, p.PricePaid),
		})
	}
	return rows, nil
}

// Usage lists the caller's charged generations, newest first.
func (s *Service) Usage(ctx context.Context, principal domain.Principal) ([]UsageRow, error) {
	if principal.AccountID == "" {
		return nil, domain.ErrUnauthorized
	}
	items, err := s.usage.ListSucceededByAccount(ctx, principal.AccountID, HistoryLimit)
	if err != nil {
		return nil, err
	}
	rows := make([]UsageRow, 0, len(items))
	for i := range items {
		p := &items[i]
		prompt := p.Prompt()
		if prompt == "" {
			prompt = NoPromptText
		}
		date, clock := stamp(p.CreatedAt)
		rows = append(rows, UsageRow{ID: p.ID, Date: date, Time: clock, Prompt: prompt, Cost: domain.GenerationCost})
	}
	return rows, nil
}

func stamp(t time.Time) (string, string) {
	local := t.In(jakarta)
	return local.Format("02/01/2006"), local.Format("15.04")
}
