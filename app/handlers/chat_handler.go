package handlers

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/linktum-io/linktum/app/dto"
	businessflow "github.com/linktum-io/linktum/business_flow"
	"github.com/linktum-io/linktum/config"
)

// ChatHandlerInterface defines the contract for the WhatsApp command webhook
type ChatHandlerInterface interface {
	HandleMessage(c fiber.Ctx) error
}

// ChatHandler turns inbound WhatsApp messages into flow calls and renders
// text replies. Every reply goes back through the webhook response; the
// sender never sees an HTTP error for a business failure.
type ChatHandler struct {
	walletFlow  businessflow.WalletFlow
	couponFlow  businessflow.CouponFlow
	paymentFlow businessflow.PaymentFlow
	linkFlow    businessflow.LinkFlow
	cfg         *config.ProductionConfig
	validator   *validator.Validate
}

func NewChatHandler(
	walletFlow businessflow.WalletFlow,
	couponFlow businessflow.CouponFlow,
	paymentFlow businessflow.PaymentFlow,
	linkFlow businessflow.LinkFlow,
	cfg *config.ProductionConfig,
) ChatHandlerInterface {
	return &ChatHandler{
		walletFlow:  walletFlow,
		couponFlow:  couponFlow,
		paymentFlow: paymentFlow,
		linkFlow:    linkFlow,
		cfg:         cfg,
		validator:   validator.New(),
	}
}

func (h *ChatHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

// HandleMessage parses one inbound command line and replies
func (h *ChatHandler) HandleMessage(c fiber.Ctx) error {
	var req dto.InboundMessageRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	ctx := createRequestContext(c)
	reply := h.dispatch(ctx, &req)

	return c.Status(fiber.StatusOK).JSON(dto.APIResponse{
		Success: true,
		Message: "Message handled",
		Data:    dto.OutboundMessageResponse{To: req.From, Body: reply},
	})
}

func (h *ChatHandler) dispatch(ctx context.Context, req *dto.InboundMessageRequest) string {
	fields := strings.Fields(req.Body)
	if len(fields) == 0 {
		return h.helpText()
	}
	command := strings.ToLower(fields[0])
	args := fields[1:]

	switch command {
	case "balance":
		return h.handleBalance(ctx, req.From)
	case "email":
		return h.handleEmail(ctx, req.From, args)
	case "redeem":
		return h.handleRedeem(ctx, req.From, args)
	case "buy":
		return h.handleBuy(ctx, req.From, args)
	case "new":
		return h.handleNew(ctx, req, args)
	case "temp":
		return h.handleTemp(ctx, req.From, args)
	case "revive":
		return h.handleRevive(ctx, req.From, args)
	case "pause":
		return h.handlePause(ctx, req.From, args)
	case "links":
		return h.handleLinks(ctx, req.From)
	case "stats":
		return h.handleStats(ctx, req.From, args)
	case "history":
		return h.handleHistory(ctx, req.From)
	default:
		return h.helpText()
	}
}

func (h *ChatHandler) handleBalance(ctx context.Context, from string) string {
	// First contact registers the account and grants the signup bonus.
	if _, err := h.walletFlow.EnsureAccount(ctx, from, ""); err != nil {
		return h.renderError(err)
	}
	balance, err := h.walletFlow.Balance(ctx, from)
	if err != nil {
		return h.renderError(err)
	}
	return fmt.Sprintf("You have %d tums.", balance.Balance)
}

func (h *ChatHandler) handleEmail(ctx context.Context, from string, args []string) string {
	if len(args) != 1 {
		return "Usage: email you@example.com"
	}
	if _, err := h.walletFlow.EnsureAccount(ctx, from, ""); err != nil {
		return h.renderError(err)
	}
	if err := h.walletFlow.RegisterEmail(ctx, from, args[0]); err != nil {
		return h.renderError(err)
	}
	return "Email saved. You can now redeem coupons."
}

func (h *ChatHandler) handleRedeem(ctx context.Context, from string, args []string) string {
	if len(args) != 1 {
		return "Usage: redeem COUPON-CODE"
	}
	result, err := h.couponFlow.Redeem(ctx, from, args[0])
	if err != nil {
		return h.renderError(err)
	}
	return fmt.Sprintf("Coupon %s redeemed: +%d tums. New balance: %d tums.", result.Code, result.Amount, result.NewBalance)
}

func (h *ChatHandler) handleBuy(ctx context.Context, from string, args []string) string {
	if len(args) != 1 {
		return fmt.Sprintf("Usage: buy AMOUNT (in %s)", h.cfg.Gateway.Currency)
	}
	amount, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil || amount == 0 {
		return "The amount must be a positive number."
	}
	result, err := h.paymentFlow.CreatePending(ctx, from, amount)
	if err != nil {
		return h.renderError(err)
	}
	return fmt.Sprintf("Pay here to receive %d tums: %s\nThe checkout expires at %s UTC.",
		result.TokenAmount, result.CheckoutURL, result.ExpiresAt.Format("15:04"))
}

func (h *ChatHandler) handleNew(ctx context.Context, req *dto.InboundMessageRequest, args []string) string {
	if len(args) < 1 || len(args) > 2 {
		return "Usage: new TARGET-PHONE [custom-code]"
	}
	createReq := &dto.CreateLinkRequest{
		CreatorPhone: req.From,
		TargetPhone:  args[0],
	}
	if len(args) == 2 {
		createReq.CustomCode = args[1]
	}
	if req.Name != "" {
		// Best effort; the link works without a stored name.
		if _, err := h.walletFlow.EnsureAccount(ctx, req.From, req.Name); err != nil {
			return h.renderError(err)
		}
	}
	link, err := h.linkFlow.Create(ctx, createReq)
	if err != nil {
		return h.renderError(err)
	}
	return fmt.Sprintf("Your link is ready: %s\nIt costs %d tums per day while active.", link.ShortURL, h.cfg.Billing.DailyFee)
}

func (h *ChatHandler) handleTemp(ctx context.Context, from string, args []string) string {
	if len(args) != 2 {
		return "Usage: temp CODE PHONE (or 'temp CODE off' to restore the original target)"
	}
	code := args[0]
	if strings.EqualFold(args[1], "off") {
		link, err := h.linkFlow.KillTemporal(ctx, from, code)
		if err != nil {
			return h.renderError(err)
		}
		return fmt.Sprintf("Link %s points at its original target again.", link.Code)
	}
	link, err := h.linkFlow.SetTemporal(ctx, from, code, args[1])
	if err != nil {
		return h.renderError(err)
	}
	return fmt.Sprintf("Link %s temporarily points at %s. Send 'temp %s off' to undo.", link.Code, *link.TemporalPhone, link.Code)
}

func (h *ChatHandler) handleRevive(ctx context.Context, from string, args []string) string {
	if len(args) != 1 {
		return "Usage: revive CODE"
	}
	link, err := h.linkFlow.Reactivate(ctx, from, args[0])
	if err != nil {
		return h.renderError(err)
	}
	return fmt.Sprintf("Link %s is active again.", link.Code)
}

func (h *ChatHandler) handlePause(ctx context.Context, from string, args []string) string {
	if len(args) != 1 {
		return "Usage: pause CODE"
	}
	link, err := h.linkFlow.Deactivate(ctx, from, args[0])
	if err != nil {
		return h.renderError(err)
	}
	return fmt.Sprintf("Link %s is paused. Send 'revive %s' to bring it back.", link.Code, link.Code)
}

func (h *ChatHandler) handleLinks(ctx context.Context, from string) string {
	result, err := h.linkFlow.ListByCreator(ctx, from, 20, 0)
	if err != nil {
		return h.renderError(err)
	}
	if len(result.Links) == 0 {
		return "You have no links yet. Send 'new TARGET-PHONE' to create one."
	}
	var b strings.Builder
	b.WriteString("Your links:\n")
	for _, link := range result.Links {
		state := "active"
		if !link.IsActive {
			state = "paused"
		}
		fmt.Fprintf(&b, "%s (%s, %d clicks, %d unique)\n", link.ShortURL, state, link.TotalClicks, link.UniqueClicks)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (h *ChatHandler) handleStats(ctx context.Context, from string, args []string) string {
	if len(args) != 1 {
		return "Usage: stats CODE"
	}
	link, err := h.linkFlow.Stats(ctx, from, args[0])
	if err != nil {
		return h.renderError(err)
	}
	state := "active"
	if !link.IsActive {
		state = "paused"
	}
	return fmt.Sprintf("%s (%s)\nClicks: %d total, %d unique\nCreated: %s",
		link.ShortURL, state, link.TotalClicks, link.UniqueClicks, link.CreatedAt.Format("2006-01-02"))
}

func (h *ChatHandler) handleHistory(ctx context.Context, from string) string {
	result, err := h.walletFlow.History(ctx, from, 10, 0)
	if err != nil {
		return h.renderError(err)
	}
	if len(result.Transactions) == 0 {
		return "No transactions yet."
	}
	var b strings.Builder
	b.WriteString("Recent transactions:\n")
	for _, t := range result.Transactions {
		sign := "+"
		if t.Direction == "debit" {
			sign = "-"
		}
		fmt.Fprintf(&b, "%s%d %s (%s)\n", sign, t.Amount, t.Kind, t.Status)
	}
	return strings.TrimRight(b.String(), "\n")
}

// renderError turns a business error into a remediation message for the
// sender. Unexpected errors collapse to a generic apology.
func (h *ChatHandler) renderError(err error) string {
	switch {
	case businessflow.IsRateLimited(err):
		return "Too many attempts. Wait a minute and try again."
	case businessflow.IsInsufficientBalance(err):
		return fmt.Sprintf("Not enough tums. Buy more with 'buy AMOUNT' or redeem a coupon with 'redeem CODE'. A new link costs %d tums.", h.cfg.Billing.LinkCreationCost)
	case businessflow.IsEmailRequired(err):
		return "Coupons need a registered email. Send 'email you@example.com' first."
	case businessflow.IsEmailAlreadySet(err):
		return "Your email is already registered."
	case businessflow.IsInvalidCoupon(err):
		return "That coupon code does not exist or is no longer valid."
	case businessflow.IsCouponExpired(err):
		return "That coupon has expired."
	case businessflow.IsCouponExhausted(err):
		return "That coupon has reached its usage limit."
	case businessflow.IsCouponAlreadyRedeemed(err):
		return "You already redeemed that coupon."
	case businessflow.IsInvalidPhone(err):
		return "That does not look like a valid phone number."
	case businessflow.IsInvalidCode(err):
		return "Custom codes are 4-32 characters: lowercase letters, digits and hyphens."
	case businessflow.IsCodeUnavailable(err):
		return "That code is already taken. Pick another one."
	case businessflow.IsLinkNotFound(err):
		return "No such link. Send 'links' to see yours."
	case businessflow.IsNotLinkOwner(err):
		return "That link belongs to another account."
	case businessflow.IsLinkNotActive(err):
		return "That link is not active."
	case businessflow.IsLinkNotDeactivated(err):
		return "That link is not paused."
	case businessflow.IsTemporalAlreadySet(err):
		return "That link already has a temporary target. Send 'temp CODE off' first."
	case businessflow.IsNoTemporalTarget(err):
		return "That link has no temporary target set."
	case businessflow.IsGraceExpired(err):
		return "The reactivation window for that link has passed; it can no longer be revived."
	case businessflow.IsAccountNotFound(err):
		return "You have no account yet. Send 'balance' to get started."
	default:
		log.Println("Chat command failed", err)
		return "Something went wrong on our side. Please try again later."
	}
}

func (h *ChatHandler) helpText() string {
	return strings.Join([]string{
		"Commands:",
		"balance - your tums balance",
		"new TARGET-PHONE [custom-code] - create a link (" + strconv.FormatUint(h.cfg.Billing.LinkCreationCost, 10) + " tums)",
		"links - list your links",
		"stats CODE - click counts for one link",
		"temp CODE PHONE / temp CODE off - temporary target (" + strconv.FormatUint(h.cfg.Billing.TemporalFee, 10) + " tums each)",
		"pause CODE / revive CODE",
		"buy AMOUNT - buy tums",
		"redeem CODE - redeem a coupon",
		"email ADDRESS - register your email",
		"history - recent transactions",
	}, "\n")
}
