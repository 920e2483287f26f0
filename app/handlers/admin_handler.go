package handlers

import (
	"log"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/linktum-io/linktum/app/dto"
	businessflow "github.com/linktum-io/linktum/business_flow"
)

// AdminHandlerInterface defines the contract for the operator API
type AdminHandlerInterface interface {
	Login(c fiber.Ctx) error
	CreateCoupon(c fiber.Ctx) error
	InvalidateCoupon(c fiber.Ctx) error
	ListCoupons(c fiber.Ctx) error
}

// AdminHandler handles operator login and coupon management
type AdminHandler struct {
	adminFlow  businessflow.AdminFlow
	couponFlow businessflow.CouponFlow
	validator  *validator.Validate
}

func NewAdminHandler(adminFlow businessflow.AdminFlow, couponFlow businessflow.CouponFlow) AdminHandlerInterface {
	return &AdminHandler{
		adminFlow:  adminFlow,
		couponFlow: couponFlow,
		validator:  validator.New(),
	}
}

func (h *AdminHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *AdminHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Login authenticates an operator and issues an access token
func (h *AdminHandler) Login(c fiber.Ctx) error {
	var req dto.AdminLoginRequest
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

	result, err := h.adminFlow.Login(createRequestContext(c), &req)
	if err != nil {
		// A failed login never reveals whether the username exists.
		if businessflow.IsAdminNotFound(err) || businessflow.IsAdminInactive(err) || businessflow.IsIncorrectPassword(err) {
			return h.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid credentials", "INVALID_CREDENTIALS", nil)
		}
		log.Println("Admin login failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Login failed", "LOGIN_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Login successful", result)
}

// CreateCoupon creates a promotional code
func (h *AdminHandler) CreateCoupon(c fiber.Ctx) error {
	var req dto.CreateCouponRequest
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

	result, err := h.couponFlow.Create(createRequestContext(c), &req)
	if err != nil {
		if businessflow.IsInvalidCoupon(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid coupon definition", "INVALID_COUPON", nil)
		}
		if businessflow.IsCouponAlreadyExists(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Coupon code already exists", "COUPON_EXISTS", nil)
		}
		log.Println("Create coupon failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create coupon", "COUPON_CREATE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Coupon created", result)
}

// InvalidateCoupon disables a promotional code
func (h *AdminHandler) InvalidateCoupon(c fiber.Ctx) error {
	code := c.Params("code")
	if code == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Coupon code is required", "MISSING_COUPON_CODE", nil)
	}

	if err := h.couponFlow.Invalidate(createRequestContext(c), code); err != nil {
		if businessflow.IsInvalidCoupon(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Coupon not found", "COUPON_NOT_FOUND", nil)
		}
		log.Println("Invalidate coupon failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to invalidate coupon", "COUPON_INVALIDATE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Coupon invalidated", nil)
}

// ListCoupons returns a page of coupons
func (h *AdminHandler) ListCoupons(c fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))

	result, err := h.couponFlow.List(createRequestContext(c), limit, offset)
	if err != nil {
		log.Println("List coupons failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list coupons", "COUPON_LIST_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Coupons listed", result)
}
