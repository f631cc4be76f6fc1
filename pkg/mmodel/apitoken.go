package mmodel

import "time"

// ApiToken is a revocable long-lived credential. Only the hash is stored; the
// prefix supports listing without exposing material.
type ApiToken struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	Name        string     `json:"name"`
	TokenHash   []byte     `json:"-"`
	TokenPrefix string     `json:"tokenPrefix"`
	LastUsedAt  *time.Time `json:"lastUsedAt"`
	ExpiresAt   *time.Time `json:"expiresAt"`
	RevokedAt   *time.Time `json:"revokedAt"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// IsActive reports whether the token is neither revoked nor expired at the
// given instant.
func (t *ApiToken) IsActive(now time.Time) bool {
	if t.RevokedAt != nil {
		return false
	}

	if t.ExpiresAt != nil && now.After(*t.ExpiresAt) {
		return false
	}

	return true
}
