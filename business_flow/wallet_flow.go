package businessflow

import (
	"context"
	"fmt"
	"log"
	"net/mail"

	"github.com/linktum-io/linktum/app/dto"
	"github.com/linktum-io/linktum/config"
	"github.com/linktum-io/linktum/models"
	"github.com/linktum-io/linktum/repository"
	"github.com/linktum-io/linktum/utils"
)

// WalletFlow owns the tums ledger: account registration, credits, debits
// and balance queries. All balance mutations append a ledger entry.
type WalletFlow interface {
	// EnsureAccount soft-registers a phone, crediting the signup bonus on
	// first contact.
	EnsureAccount(ctx context.Context, phone, name string) (*models.Account, error)

	// RegisterEmail records the contact email once per account.
	RegisterEmail(ctx context.Context, phone, email string) error

	Credit(ctx context.Context, phone string, amount uint64, kind models.TransactionKind, description string) (*models.Transaction, error)
	Debit(ctx context.Context, phone string, amount uint64, kind models.TransactionKind, description string) (*models.Transaction, error)

	Balance(ctx context.Context, phone string) (*dto.BalanceResponse, error)
	History(ctx context.Context, phone string, limit, offset int) (*dto.TransactionHistoryResponse, error)
}

// WalletFlowImpl implements WalletFlow
type WalletFlowImpl struct {
	accountRepo repository.AccountRepository
	txRepo      repository.TransactionRepository
	cfg         *config.ProductionConfig
	logger      *log.Logger
}

// NewWalletFlow creates a new wallet flow
func NewWalletFlow(
	accountRepo repository.AccountRepository,
	txRepo repository.TransactionRepository,
	cfg *config.ProductionConfig,
	logger *log.Logger,
) WalletFlow {
	if logger == nil {
		logger = log.Default()
	}
	return &WalletFlowImpl{
		accountRepo: accountRepo,
		txRepo:      txRepo,
		cfg:         cfg,
		logger:      logger,
	}
}

func (f *WalletFlowImpl) EnsureAccount(ctx context.Context, phone, name string) (*models.Account, error) {
	normalized := utils.NormalizePhone(phone)
	if normalized == "" {
		return nil, NewBusinessError("INVALID_PHONE", "invalid phone number", ErrInvalidPhone)
	}

	account, created, err := f.accountRepo.CreateIfAbsent(ctx, normalized)
	if err != nil {
		return nil, NewBusinessError("ACCOUNT_REGISTRATION_FAILED", "failed to register account", err)
	}

	if created && f.cfg.Billing.SignupBonus > 0 {
		entry := &models.Transaction{
			Kind:        models.TransactionKindSignupBonus,
			Status:      models.TransactionStatusCompleted,
			CompletedAt: utils.UTCNowPtr(),
			Description: "welcome bonus",
		}
		if err := f.accountRepo.Credit(ctx, account.ID, f.cfg.Billing.SignupBonus, entry); err != nil {
			// The account exists without its bonus; surface loudly rather
			// than unwinding the registration.
			f.logger.Printf("ERROR inconsistency: signup bonus for %s not credited: %v", normalized, err)
		} else {
			account.Balance = entry.BalanceAfter
		}
	}

	if name != "" && account.Name == "" {
		if err := f.accountRepo.SetName(ctx, normalized, name); err != nil {
			f.logger.Printf("WARN failed to store name for %s: %v", normalized, err)
		} else {
			account.Name = name
		}
	}

	return account, nil
}

func (f *WalletFlowImpl) RegisterEmail(ctx context.Context, phone, email string) error {
	normalized := utils.NormalizePhone(phone)
	if normalized == "" {
		return NewBusinessError("INVALID_PHONE", "invalid phone number", ErrInvalidPhone)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return NewBusinessError("INVALID_EMAIL", "invalid email address", ErrInvalidEmail)
	}

	account, err := f.accountRepo.ByPhone(ctx, normalized)
	if err != nil {
		return NewBusinessError("ACCOUNT_LOOKUP_FAILED", "failed to look up account", err)
	}
	if account == nil {
		return NewBusinessError("ACCOUNT_NOT_FOUND", "account not found", ErrAccountNotFound)
	}

	ok, err := f.accountRepo.SetEmail(ctx, normalized, email)
	if err != nil {
		return NewBusinessError("EMAIL_UPDATE_FAILED", "failed to store email", err)
	}
	if !ok {
		return NewBusinessError("EMAIL_ALREADY_SET", "email is already registered", ErrEmailAlreadySet)
	}
	return nil
}

func (f *WalletFlowImpl) Credit(ctx context.Context, phone string, amount uint64, kind models.TransactionKind, description string) (*models.Transaction, error) {
	if amount == 0 {
		return nil, NewBusinessError("INVALID_AMOUNT", "amount must be greater than zero", ErrInvalidAmount)
	}
	account, err := f.lookup(ctx, phone)
	if err != nil {
		return nil, err
	}

	entry := &models.Transaction{
		Kind:        kind,
		Status:      models.TransactionStatusCompleted,
		CompletedAt: utils.UTCNowPtr(),
		Description: description,
	}
	if err := f.accountRepo.Credit(ctx, account.ID, amount, entry); err != nil {
		return nil, NewBusinessError("CREDIT_FAILED", fmt.Sprintf("failed to credit %d tums", amount), err)
	}
	return entry, nil
}

func (f *WalletFlowImpl) Debit(ctx context.Context, phone string, amount uint64, kind models.TransactionKind, description string) (*models.Transaction, error) {
	if amount == 0 {
		return nil, NewBusinessError("INVALID_AMOUNT", "amount must be greater than zero", ErrInvalidAmount)
	}
	account, err := f.lookup(ctx, phone)
	if err != nil {
		return nil, err
	}

	entry := &models.Transaction{
		Kind:        kind,
		Status:      models.TransactionStatusCompleted,
		CompletedAt: utils.UTCNowPtr(),
		Description: description,
	}
	ok, err := f.accountRepo.Debit(ctx, account.ID, amount, entry)
	if err != nil {
		return nil, NewBusinessError("DEBIT_FAILED", fmt.Sprintf("failed to debit %d tums", amount), err)
	}
	if !ok {
		return nil, NewBusinessError("INSUFFICIENT_BALANCE", "insufficient balance", ErrInsufficientBalance)
	}
	return entry, nil
}

func (f *WalletFlowImpl) Balance(ctx context.Context, phone string) (*dto.BalanceResponse, error) {
	account, err := f.lookup(ctx, phone)
	if err != nil {
		return nil, err
	}
	return &dto.BalanceResponse{Phone: account.Phone, Balance: account.Balance}, nil
}

func (f *WalletFlowImpl) History(ctx context.Context, phone string, limit, offset int) (*dto.TransactionHistoryResponse, error) {
	account, err := f.lookup(ctx, phone)
	if err != nil {
		return nil, err
	}
	limit, offset = normalizePage(limit, offset)
	rows, err := f.txRepo.ListByAccount(ctx, account.ID, limit, offset)
	if err != nil {
		return nil, NewBusinessError("HISTORY_LOOKUP_FAILED", "failed to list transactions", err)
	}
	resp := &dto.TransactionHistoryResponse{Transactions: make([]dto.TransactionDTO, 0, len(rows))}
	for _, row := range rows {
		resp.Transactions = append(resp.Transactions, mapTransactionDTO(row))
	}
	return resp, nil
}

func (f *WalletFlowImpl) lookup(ctx context.Context, phone string) (*models.Account, error) {
	normalized := utils.NormalizePhone(phone)
	if normalized == "" {
		return nil, NewBusinessError("INVALID_PHONE", "invalid phone number", ErrInvalidPhone)
	}
	account, err := f.accountRepo.ByPhone(ctx, normalized)
	if err != nil {
		return nil, NewBusinessError("ACCOUNT_LOOKUP_FAILED", "failed to look up account", err)
	}
	if account == nil {
		return nil, NewBusinessError("ACCOUNT_NOT_FOUND", "account not found", ErrAccountNotFound)
	}
	return account, nil
}
