package models

import "time"

// LinkClick records a unique visitor on a link. Uniqueness is enforced by
// the (link_id, fingerprint_hash) constraint: only the first insert for a
// fingerprint lands, repeat visits bump the link's total counter only.
type LinkClick struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	LinkID uint `gorm:"not null;index:idx_link_clicks_link_id;uniqueIndex:uk_link_clicks_link_fingerprint" json:"link_id"`

	FingerprintHash string `gorm:"size:64;not null;uniqueIndex:uk_link_clicks_link_fingerprint" json:"fingerprint_hash"`
	IPHash          string `gorm:"size:64;not null" json:"ip_hash"`
	UserAgent       string `gorm:"type:text" json:"user_agent"`
	Referrer        string `gorm:"type:text" json:"referrer"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_link_clicks_created_at" json:"created_at"`

	Link Link `gorm:"foreignKey:LinkID;constraint:OnDelete:CASCADE" json:"link,omitempty"`
}

// TableName returns the table name for LinkClick
func (LinkClick) TableName() string { return "link_clicks" }

// LinkClickFilter provides filter fields for repository queries
type LinkClickFilter struct {
	ID            *uint
	LinkID        *uint
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
