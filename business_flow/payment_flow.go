// Package businessflow contains the core business logic for payment workflows
package businessflow

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/linktum-io/linktum/app/dto"
	"github.com/linktum-io/linktum/config"
	"github.com/linktum-io/linktum/models"
	"github.com/linktum-io/linktum/repository"
	"github.com/linktum-io/linktum/utils"
)

// PaymentFlow handles token purchases: opening checkouts with the fiat
// gateway and settling their callbacks against the ledger.
type PaymentFlow interface {
	// CreatePending opens a checkout and records a pending purchase entry.
	// The fiat to token conversion happens here, exactly once.
	CreatePending(ctx context.Context, phone string, fiatAmount uint64) (*dto.CreatePaymentResponse, error)

	// Settle applies a gateway outcome to the referenced purchase. Repeat
	// callbacks for an already settled purchase fail with AlreadySettled.
	Settle(ctx context.Context, req *dto.GatewayCallbackRequest) (*dto.TransactionDTO, error)

	// ExpirePending sweeps pending purchases past their settlement window.
	ExpirePending(ctx context.Context) (int64, error)
}

// settlementOutcome describes how a gateway status maps onto the ledger.
type settlementOutcome struct {
	Status  models.TransactionStatus
	Credit  bool
	Reverse bool
	Final   bool
}

// gatewayOutcomes maps normalized gateway statuses to settlement behavior.
// "pending", "processing" and "dispute" callbacks are acknowledged without
// touching the entry; a dispute only moves money once the gateway resolves
// it and sends "reversed" or "refunded".
var gatewayOutcomes = map[string]settlementOutcome{
	"success":    {Status: models.TransactionStatusCompleted, Credit: true, Final: true},
	"failed":     {Status: models.TransactionStatusFailed, Final: true},
	"cancelled":  {Status: models.TransactionStatusCancelled, Final: true},
	"abandoned":  {Status: models.TransactionStatusCancelled, Final: true},
	"pending":    {Status: models.TransactionStatusPending},
	"processing": {Status: models.TransactionStatusPending},
	"dispute":    {Status: models.TransactionStatusPending},
	"reversed":   {Status: models.TransactionStatusReversed, Reverse: true, Final: true},
	"refunded":   {Status: models.TransactionStatusReversed, Reverse: true, Final: true},
}

// PaymentFlowImpl implements PaymentFlow
type PaymentFlowImpl struct {
	accountRepo repository.AccountRepository
	txRepo      repository.TransactionRepository
	walletFlow  WalletFlow
	gateway     PaymentGateway
	limiter     RateLimiter
	cfg         *config.ProductionConfig
	logger      *log.Logger
}

// NewPaymentFlow creates a new payment flow
func NewPaymentFlow(
	accountRepo repository.AccountRepository,
	txRepo repository.TransactionRepository,
	walletFlow WalletFlow,
	gateway PaymentGateway,
	limiter RateLimiter,
	cfg *config.ProductionConfig,
	logger *log.Logger,
) PaymentFlow {
	if logger == nil {
		logger = log.Default()
	}
	return &PaymentFlowImpl{
		accountRepo: accountRepo,
		txRepo:      txRepo,
		walletFlow:  walletFlow,
		gateway:     gateway,
		limiter:     limiter,
		cfg:         cfg,
		logger:      logger,
	}
}

func (f *PaymentFlowImpl) CreatePending(ctx context.Context, phone string, fiatAmount uint64) (*dto.CreatePaymentResponse, error) {
	if fiatAmount == 0 {
		return nil, NewBusinessError("INVALID_AMOUNT", "amount must be greater than zero", ErrInvalidAmount)
	}

	account, err := f.walletFlow.EnsureAccount(ctx, phone, "")
	if err != nil {
		return nil, err
	}

	allowed, retryAfter, err := f.limiter.Allow(ctx, account.Phone, ActionBuyTokens)
	if err != nil {
		f.logger.Printf("WARN rate limiter unavailable for %s: %v", account.Phone, err)
	} else if !allowed {
		return nil, NewBusinessErrorf("RATE_LIMITED", "too many attempts, retry in %ds", ErrRateLimited, int(retryAfter.Seconds()))
	}

	tokens := fiatAmount * f.cfg.Billing.TumsPerFiatUnit
	reference := fmt.Sprintf("PAY-%s", uuid.New())
	expiresAt := utils.UTCNowAdd(f.cfg.Billing.PendingPaymentTTL)

	entry := &models.Transaction{
		AccountID:    account.ID,
		Direction:    models.TransactionDirectionCredit,
		Kind:         models.TransactionKindPurchase,
		Status:       models.TransactionStatusPending,
		Amount:       tokens,
		FiatAmount:   fiatAmount,
		FiatCurrency: f.cfg.Gateway.Currency,
		Reference:    &reference,
		ExpiresAt:    &expiresAt,
		Description:  fmt.Sprintf("purchase of %d tums", tokens),
	}
	if err := f.txRepo.Save(ctx, entry); err != nil {
		return nil, NewBusinessError("PAYMENT_CREATE_FAILED", "failed to record purchase", err)
	}

	checkoutURL, err := f.gateway.CreateCheckout(ctx, CheckoutRequest{
		Reference:   reference,
		FiatAmount:  fiatAmount,
		Currency:    f.cfg.Gateway.Currency,
		Phone:       account.Phone,
		Description: entry.Description,
	})
	if err != nil {
		if _, terr := f.txRepo.TransitionStatus(ctx, entry.ID, models.TransactionStatusPending, models.TransactionStatusFailed, utils.UTCNowPtr()); terr != nil {
			f.logger.Printf("ERROR failed to fail purchase %s after gateway error: %v", reference, terr)
		}
		return nil, NewBusinessError("GATEWAY_REJECTED", "payment gateway rejected the request", ErrGatewayRejected)
	}

	return &dto.CreatePaymentResponse{
		Reference:   reference,
		CheckoutURL: checkoutURL,
		TokenAmount: tokens,
		ExpiresAt:   expiresAt,
	}, nil
}

func (f *PaymentFlowImpl) Settle(ctx context.Context, req *dto.GatewayCallbackRequest) (*dto.TransactionDTO, error) {
	entry, err := f.txRepo.ByReference(ctx, req.Reference)
	if err != nil {
		return nil, NewBusinessError("PAYMENT_LOOKUP_FAILED", "failed to look up payment", err)
	}
	if entry == nil {
		return nil, NewBusinessError("PAYMENT_NOT_FOUND", "payment not found", ErrPaymentNotFound)
	}

	outcome, known := gatewayOutcomes[strings.ToLower(strings.TrimSpace(req.Status))]
	if !known {
		return nil, NewBusinessErrorf("UNKNOWN_OUTCOME", "unknown settlement outcome %q", ErrUnknownOutcome, req.Status)
	}

	switch {
	case outcome.Reverse:
		return f.reverse(ctx, entry)
	case !outcome.Final:
		// Informational callback; acknowledge without changing anything.
		mapped := mapTransactionDTO(entry)
		return &mapped, nil
	case outcome.Credit:
		ok, err := f.accountRepo.SettlePurchase(ctx, entry.AccountID, entry.ID, entry.Amount)
		if err != nil {
			return nil, NewBusinessError("SETTLEMENT_FAILED", "failed to settle purchase", err)
		}
		if !ok {
			return nil, NewBusinessError("ALREADY_SETTLED", "payment already settled", ErrAlreadySettled)
		}
	default:
		ok, err := f.txRepo.TransitionStatus(ctx, entry.ID, models.TransactionStatusPending, outcome.Status, utils.UTCNowPtr())
		if err != nil {
			return nil, NewBusinessError("SETTLEMENT_FAILED", "failed to settle purchase", err)
		}
		if !ok {
			return nil, NewBusinessError("ALREADY_SETTLED", "payment already settled", ErrAlreadySettled)
		}
	}

	settled, err := f.txRepo.ByReference(ctx, req.Reference)
	if err != nil || settled == nil {
		return nil, NewBusinessError("PAYMENT_LOOKUP_FAILED", "failed to reload settled payment", err)
	}
	mapped := mapTransactionDTO(settled)
	return &mapped, nil
}

// reverse handles chargebacks on completed purchases. The debit is clamped
// at zero: tokens already spent are not recovered and no debt is carried.
func (f *PaymentFlowImpl) reverse(ctx context.Context, entry *models.Transaction) (*dto.TransactionDTO, error) {
	ok, err := f.txRepo.TransitionStatus(ctx, entry.ID, models.TransactionStatusCompleted, models.TransactionStatusReversed, utils.UTCNowPtr())
	if err != nil {
		return nil, NewBusinessError("REVERSAL_FAILED", "failed to reverse purchase", err)
	}
	if !ok {
		return nil, NewBusinessError("ALREADY_SETTLED", "payment already settled", ErrAlreadySettled)
	}

	reversal := &models.Transaction{
		Kind:        models.TransactionKindReversal,
		Status:      models.TransactionStatusCompleted,
		CompletedAt: utils.UTCNowPtr(),
		Description: "chargeback of " + derefReference(entry.Reference),
	}
	debited, err := f.accountRepo.DebitUpTo(ctx, entry.AccountID, entry.Amount, reversal)
	if err != nil {
		f.logger.Printf("ERROR inconsistency: purchase %s reversed but debit failed: %v", derefReference(entry.Reference), err)
		return nil, NewBusinessError("REVERSAL_FAILED", "failed to apply reversal debit", err)
	}
	if debited < entry.Amount {
		f.logger.Printf("WARN reversal of %s clamped: recovered %d of %d tums", derefReference(entry.Reference), debited, entry.Amount)
	}

	mapped := mapTransactionDTO(reversal)
	return &mapped, nil
}

func (f *PaymentFlowImpl) ExpirePending(ctx context.Context) (int64, error) {
	n, err := f.txRepo.ExpirePending(ctx, utils.UTCNow())
	if err != nil {
		return 0, NewBusinessError("EXPIRY_SWEEP_FAILED", "failed to expire pending purchases", err)
	}
	return n, nil
}

func derefReference(ref *string) string {
	if ref == nil {
		return ""
	}
	return *ref
}
