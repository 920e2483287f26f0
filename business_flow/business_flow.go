// Package businessflow contains the business logic for the application.
package businessflow

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/linktum-io/linktum/app/dto"
	"github.com/linktum-io/linktum/models"
)

const RequestIDKey = "X-Request-ID"

// Rate-limited action names shared between flows
const (
	ActionCreateLink   = "create_link"
	ActionRedeemCoupon = "redeem_coupon"
	ActionBuyTokens    = "buy_tokens"
	ActionTemporal     = "temporal"
)

// BuildChatURL renders the wa.me chat URL a short link redirects to.
func BuildChatURL(phone, message string) string {
	if message == "" {
		return "https://wa.me/" + phone
	}
	return fmt.Sprintf("https://wa.me/%s?text=%s", phone, url.QueryEscape(message))
}

// BuildShortURL renders the public short URL for a code.
func BuildShortURL(baseURL, code string) string {
	return strings.TrimRight(baseURL, "/") + "/" + code
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func mapLinkDTO(link *models.Link, baseURL string) dto.LinkDTO {
	return dto.LinkDTO{
		Code:          link.Code,
		ShortURL:      BuildShortURL(baseURL, link.Code),
		CreatorPhone:  link.CreatorPhone,
		TargetPhone:   link.TargetPhone,
		TemporalPhone: link.TemporalPhone,
		Title:         link.Title,
		Message:       link.Message,
		TotalClicks:   link.TotalClicks,
		UniqueClicks:  link.UniqueClicks,
		IsActive:      link.IsActive,
		ExpiresAt:     link.ExpiresAt,
		NextBillingAt: link.NextBillingAt,
		CreatedAt:     link.CreatedAt,
	}
}

func mapTransactionDTO(t *models.Transaction) dto.TransactionDTO {
	return dto.TransactionDTO{
		UUID:         t.UUID.String(),
		Direction:    string(t.Direction),
		Kind:         string(t.Kind),
		Status:       string(t.Status),
		Amount:       t.Amount,
		BalanceAfter: t.BalanceAfter,
		Description:  t.Description,
		CreatedAt:    t.CreatedAt,
		CompletedAt:  t.CompletedAt,
	}
}

func mapCouponDTO(c *models.Coupon) dto.CouponDTO {
	return dto.CouponDTO{
		Code:      c.Code,
		Amount:    c.Amount,
		IsValid:   c.IsValid,
		MaxUses:   c.MaxUses,
		UsedCount: c.UsedCount,
		ExpiresAt: c.ExpiresAt,
		CreatedAt: c.CreatedAt,
	}
}
