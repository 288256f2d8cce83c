package models

import "time"

// ShareLink grants public read-only verification access to one credential.
type ShareLink struct {
	ID           string     `db:"id" json:"id"`
	Token        string     `db:"token" json:"token"`
	CredentialID string     `db:"credential_id" json:"credentialId"`
	ExpiresAt    *time.Time `db:"expires_at" json:"expiresAt,omitempty"`
	ViewCount    int64      `db:"view_count" json:"viewCount"`
	RevokedAt    *time.Time `db:"revoked_at" json:"revokedAt,omitempty"`
	CreatedBy    string     `db:"created_by" json:"createdBy"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
}

// ActiveAt reports whether the link is usable at the given instant.
func (l ShareLink) ActiveAt(now time.Time) bool {
	if l.RevokedAt != nil {
		return false
	}
	return l.ExpiresAt == nil || l.ExpiresAt.After(now)
}
