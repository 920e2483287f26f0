package dto

import "time"

// CreateLinkRequest creates a new short link for a creator
type CreateLinkRequest struct {
	CreatorPhone string `json:"creator_phone" validate:"required,min=8,max=20"`
	TargetPhone  string `json:"target_phone" validate:"required,min=8,max=20"`
	CustomCode   string `json:"custom_code,omitempty" validate:"omitempty,min=4,max=32"`
	Title        string `json:"title,omitempty" validate:"omitempty,max=255"`
	Message      string `json:"message,omitempty" validate:"omitempty,max=1000"`
	TTLDays      int    `json:"ttl_days,omitempty" validate:"omitempty,min=1,max=365"`
}

// SetTemporalRequest points a link at a temporary target
type SetTemporalRequest struct {
	CreatorPhone string `json:"creator_phone" validate:"required,min=8,max=20"`
	Phone        string `json:"phone" validate:"required,min=8,max=20"`
}

// LinkDTO is the outward representation of a short link
type LinkDTO struct {
	Code          string     `json:"code"`
	ShortURL      string     `json:"short_url"`
	CreatorPhone  string     `json:"creator_phone"`
	TargetPhone   string     `json:"target_phone"`
	TemporalPhone *string    `json:"temporal_phone,omitempty"`
	Title         string     `json:"title,omitempty"`
	Message       string     `json:"message,omitempty"`
	TotalClicks   uint64     `json:"total_clicks"`
	UniqueClicks  uint64     `json:"unique_clicks"`
	IsActive      bool       `json:"is_active"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	NextBillingAt time.Time  `json:"next_billing_at"`
	CreatedAt     time.Time  `json:"created_at"`
}

// LinkListResponse wraps a page of links
type LinkListResponse struct {
	Links []LinkDTO `json:"links"`
}
