package handlers

import (
	"encoding/json"
	"errors"
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/linktum-io/linktum/app/dto"
	businessflow "github.com/linktum-io/linktum/business_flow"
)

// SignatureVerifier checks gateway callback signatures over the raw body.
type SignatureVerifier interface {
	VerifySignature(rawBody []byte, signature string) bool
}

// PaymentWebhookHandlerInterface defines the contract for gateway callbacks
type PaymentWebhookHandlerInterface interface {
	Settle(c fiber.Ctx) error
}

// PaymentWebhookHandler receives settlement callbacks from the fiat gateway
type PaymentWebhookHandler struct {
	paymentFlow businessflow.PaymentFlow
	verifier    SignatureVerifier
	validator   *validator.Validate
}

func NewPaymentWebhookHandler(paymentFlow businessflow.PaymentFlow, verifier SignatureVerifier) PaymentWebhookHandlerInterface {
	return &PaymentWebhookHandler{
		paymentFlow: paymentFlow,
		verifier:    verifier,
		validator:   validator.New(),
	}
}

func (h *PaymentWebhookHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *PaymentWebhookHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Settle applies a gateway settlement callback to the referenced purchase
func (h *PaymentWebhookHandler) Settle(c fiber.Ctx) error {
	rawBody := c.Body()
	signature := c.Get("X-Signature")
	if !h.verifier.VerifySignature(rawBody, signature) {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid callback signature", "INVALID_SIGNATURE", nil)
	}

	var req dto.GatewayCallbackRequest
	if err := json.Unmarshal(rawBody, &req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	result, err := h.paymentFlow.Settle(createRequestContext(c), &req)
	if err != nil {
		if businessflow.IsPaymentNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Payment not found", "PAYMENT_NOT_FOUND", nil)
		}
		if businessflow.IsAlreadySettled(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Payment already settled", "ALREADY_SETTLED", nil)
		}
		if errors.Is(err, businessflow.ErrUnknownOutcome) {
			return h.ErrorResponse(c, fiber.StatusUnprocessableEntity, "Unknown settlement outcome", "UNKNOWN_OUTCOME", nil)
		}
		log.Println("Settle payment failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Settlement failed", "SETTLEMENT_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Settlement applied", result)
}
