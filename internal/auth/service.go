package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"kiranalogo/internal/domain"
	"kiranalogo/internal/infra"
)

var validate = validator.New()

type RegisterInput struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Name     string `json:"name" validate:"max=100"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Session is returned by Register and Login.
type Session struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	Account   *domain.Account `json:"-"`
}

type Options struct {
	BcryptCost    int
	SignupCredits int
}

type Service struct {
	accounts domain.AccountRepository
	tokens   *TokenService
	opts     Options
	logger   infra.Logger
}

func NewService(accounts domain.AccountRepository, tokens *TokenService, opts Options, logger infra.Logger) *Service {
	if opts.BcryptCost < bcrypt.MinCost || opts.BcryptCost > bcrypt.MaxCost {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.SignupCredits < 0 {
		opts.SignupCredits = 0
	}
	return &Service{accounts: accounts, tokens: tokens, opts: opts, logger: logger}
}

func (s *Service) Tokens() *TokenService { return s.tokens }

// Register creates the account with its signup credits and signs it in.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	if err := validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.opts.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}
	account, err := s.accounts.Create(ctx, &domain.Account{
		Email:        in.Email,
		Name:         in.Name,
		PasswordHash: string(hash),
		Credits:      s.opts.SignupCredits,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("account_id", account.ID).Int("credits", account.Credits).Msg("account registered")
	return s.session(account)
}

// Login checks the password. Unknown emails and wrong passwords are
// indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, in LoginInput) (*Session, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	account, err := s.accounts.GetByEmail(ctx, in.Email)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(in.Password)) != nil {
		return nil, domain.ErrInvalidCredentials
	}
	return s.session(account)
}

func (s *Service) Profile(ctx context.Context, principal domain.Principal) (*domain.Account, error) {
	if principal.AccountID == "" {
		return nil, domain.ErrUnauthorized
	}
	return s.accounts.GetByID(ctx, principal.AccountID)
}

// Delete removes the caller's account together with its predictions, logos
// and ledger history.
func (s *Service) Delete(ctx context.Context, principal domain.Principal) error {
	if principal.AccountID == "" {
		return domain.ErrUnauthorized
	}
	if err := s.accounts.Delete(ctx, principal.AccountID); err != nil {
		return err
	}
	s.logger.Info().Str("account_id", principal.AccountID).Msg("account deleted")
	return nil
}

func (s *Service) session(account *domain.Account) (*Session, error) {
	token, expires, err := s.tokens.Issue(account)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: expires, Account: account}, nil
}
