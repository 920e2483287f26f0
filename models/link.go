package models

import (
	"time"

	"gorm.io/gorm"
)

// DeactivationReason records why a link left the active state.
type DeactivationReason string

const (
	DeactivationReasonBilling DeactivationReason = "billing" // Daily fee could not be charged
	DeactivationReasonExpiry  DeactivationReason = "expiry"  // Link TTL lapsed
	DeactivationReasonOwner   DeactivationReason = "owner"   // Creator paused the link voluntarily
)

// Link is a shortened wa.me chat link. The effective redirect target is
// TemporalPhone while set, otherwise TargetPhone. Billing walks
// ACTIVE -> DEACTIVATED -> deleted: a link whose daily fee cannot be
// charged is deactivated, survives DeletionGraceWindow for reactivation,
// then is removed by the sweep.
type Link struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Code string `gorm:"size:64;not null;uniqueIndex:uk_links_code" json:"code"`

	CreatorPhone  string  `gorm:"size:20;not null;index:idx_links_creator_phone" json:"creator_phone"`
	TargetPhone   string  `gorm:"size:20;not null" json:"target_phone"`
	TemporalPhone *string `gorm:"size:20" json:"temporal_phone,omitempty"`

	Title   string `gorm:"size:255" json:"title"`
	Message string `gorm:"type:text" json:"message"`

	TotalClicks  uint64 `gorm:"not null;default:0" json:"total_clicks"`
	UniqueClicks uint64 `gorm:"not null;default:0" json:"unique_clicks"`

	IsActive  bool       `gorm:"not null;default:true;index:idx_links_is_active" json:"is_active"`
	ExpiresAt *time.Time `gorm:"index" json:"expires_at,omitempty"`

	NextBillingAt    time.Time          `gorm:"not null;index:idx_links_next_billing_at" json:"next_billing_at"`
	BillingClaimedAt *time.Time         `json:"billing_claimed_at,omitempty"`
	DeactivatedAt    *time.Time         `gorm:"index" json:"deactivated_at,omitempty"`
	Reason           DeactivationReason `gorm:"type:varchar(10)" json:"reason,omitempty"`

	// DeleteWarningSentAt guards the pre-deletion notice so it goes out once.
	DeleteWarningSentAt *time.Time `json:"delete_warning_sent_at,omitempty"`

	CreatedAt time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_links_created_at" json:"created_at"`
	UpdatedAt time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

// TableName returns the table name for Link
func (Link) TableName() string { return "links" }

// EffectiveTarget returns the phone the link currently redirects to.
func (l *Link) EffectiveTarget() string {
	if l.TemporalPhone != nil && *l.TemporalPhone != "" {
		return *l.TemporalPhone
	}
	return l.TargetPhone
}

// IsExpired reports whether the link TTL has lapsed.
func (l *Link) IsExpired(now time.Time) bool {
	return l.ExpiresAt != nil && now.After(*l.ExpiresAt)
}

// LinkFilter represents filter criteria for link queries
type LinkFilter struct {
	ID            *uint
	Code          *string
	CreatorPhone  *string
	IsActive      *bool
	Reason        *DeactivationReason
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
