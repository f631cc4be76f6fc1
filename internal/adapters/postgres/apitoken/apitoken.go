package apitoken

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/computor-org/computor/pkg/mmodel"
)

// Repository provides an interface for operations related to api token entities.
//
//go:generate mockgen --destination=apitoken.mock.go --package=apitoken . Repository
type Repository interface {
	Create(ctx context.Context, token *mmodel.ApiToken) (*mmodel.ApiToken, error)
	Find(ctx context.Context, id string) (*mmodel.ApiToken, error)
	FindByUser(ctx context.Context, userID string, includeRevoked bool) ([]*mmodel.ApiToken, error)
	FindActiveByName(ctx context.Context, userID, name string) (*mmodel.ApiToken, error)
	FindByTokenHash(ctx context.Context, tokenHash []byte) (*mmodel.ApiToken, error)
	Revoke(ctx context.Context, id string) error
	RevokeAllByName(ctx context.Context, userID, name string) (int, error)
	UpdateLastUsed(ctx context.Context, id string) error
}

// hashPrefix returns the first hex chars of a token hash for tagging without
// exposing material.
func hashPrefix(hash []byte) string {
	s := hex.EncodeToString(hash)
	if len(s) > 12 {
		return s[:12]
	}

	return s
}

// ApiTokenPostgreSQLModel represents the api token into SQL context.
type ApiTokenPostgreSQLModel struct {
	ID          string
	UserID      string
	Name        string
	TokenHash   []byte
	TokenPrefix string
	LastUsedAt  *time.Time
	ExpiresAt   *time.Time
	RevokedAt   *time.Time
	CreatedAt   time.Time
}

// FromEntity converts an entity ApiToken to ApiTokenPostgreSQLModel.
func (m *ApiTokenPostgreSQLModel) FromEntity(token *mmodel.ApiToken) {
	m.ID = token.ID
	m.UserID = token.UserID
	m.Name = token.Name
	m.TokenHash = token.TokenHash
	m.TokenPrefix = token.TokenPrefix
	m.LastUsedAt = token.LastUsedAt
	m.ExpiresAt = token.ExpiresAt
	m.RevokedAt = token.RevokedAt
	m.CreatedAt = token.CreatedAt
}

// ToEntity converts an ApiTokenPostgreSQLModel to entity ApiToken.
func (m *ApiTokenPostgreSQLModel) ToEntity() *mmodel.ApiToken {
	return &mmodel.ApiToken{
		ID:          m.ID,
		UserID:      m.UserID,
		Name:        m.Name,
		TokenHash:   m.TokenHash,
		TokenPrefix: m.TokenPrefix,
		LastUsedAt:  m.LastUsedAt,
		ExpiresAt:   m.ExpiresAt,
		RevokedAt:   m.RevokedAt,
		CreatedAt:   m.CreatedAt,
	}
}
