package apitoken

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/computor-org/computor/internal/adapters/postgres/cachedrepo"
	"github.com/computor-org/computor/internal/services"
	"github.com/computor-org/computor/pkg"
	"github.com/computor-org/computor/pkg/constant"
	"github.com/computor-org/computor/pkg/mcache"
	"github.com/computor-org/computor/pkg/mmodel"
	"github.com/computor-org/computor/pkg/mopentelemetry"
	"github.com/computor-org/computor/pkg/mpostgres"
)

const apiTokenColumns = `id, user_id, name, token_hash, token_prefix, last_used_at, expires_at, revoked_at, created_at`

// ApiTokenPostgreSQLRepository is a Postgresql-specific implementation of the Repository.
type ApiTokenPostgreSQLRepository struct {
	connection *mpostgres.PostgresConnection
	tableName  string
	helper     *cachedrepo.Helper[mmodel.ApiToken]
}

// NewApiTokenPostgreSQLRepository returns a new instance of ApiTokenPostgreSQLRepository
// using the given postgres connection.
func NewApiTokenPostgreSQLRepository(pc *mpostgres.PostgresConnection, cache *mcache.Cache) *ApiTokenPostgreSQLRepository {
	r := &ApiTokenPostgreSQLRepository{
		connection: pc,
		tableName:  "api_token",
	}

	r.helper = cachedrepo.NewHelper[mmodel.ApiToken](cache, r)

	return r
}

// EntityType implements cachedrepo.Cacheable.
func (r *ApiTokenPostgreSQLRepository) EntityType() string { return "api_token" }

// TTL implements cachedrepo.Cacheable. Token lookups sit on the auth hot
// path; keep them short-lived so revocation converges fast even on bypass.
func (r *ApiTokenPostgreSQLRepository) TTL() time.Duration { return 2 * time.Minute }

// EntityTags implements cachedrepo.Cacheable.
func (r *ApiTokenPostgreSQLRepository) EntityTags(_ context.Context, token *mmodel.ApiToken) []string {
	tags := []string{
		"api_token:" + token.ID,
		"api_token:list",
	}

	if token.UserID != "" {
		tags = append(tags, "api_token:user:"+token.UserID)

		if token.Name != "" {
			tags = append(tags, "api_token:name:"+token.UserID+":"+token.Name)
		}
	}

	if len(token.TokenHash) > 0 {
		tags = append(tags, "api_token:hash:"+hashPrefix(token.TokenHash))
	}

	return tags
}

// ListTags implements cachedrepo.Cacheable.
func (r *ApiTokenPostgreSQLRepository) ListTags(filters map[string]any) []string {
	tags := []string{"api_token:list"}

	if userID, ok := filters["user_id"].(string); ok && userID != "" {
		tags = append(tags, "api_token:user:"+userID)
	}

	return tags
}

func (r *ApiTokenPostgreSQLRepository) scan(row interface{ Scan(...any) error }) (*mmodel.ApiToken, error) {
	record := &ApiTokenPostgreSQLModel{}

	if err := row.Scan(&record.ID, &record.UserID, &record.Name, &record.TokenHash, &record.TokenPrefix,
		&record.LastUsedAt, &record.ExpiresAt, &record.RevokedAt, &record.CreatedAt); err != nil {
		return nil, err
	}

	return record.ToEntity(), nil
}

// Create a new api token entity into Postgresql and returns it.
func (r *ApiTokenPostgreSQLRepository) Create(ctx context.Context, token *mmodel.ApiToken) (*mmodel.ApiToken, error) {
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.create_api_token")
	defer span.End()

	db, err := r.connection.GetDB()
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get database connection", err)

		return nil, err
	}

	record := &ApiTokenPostgreSQLModel{}
	record.FromEntity(token)

	_, err = db.ExecContext(ctx, `INSERT INTO api_token VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		record.ID, record.UserID, record.Name, record.TokenHash, record.TokenPrefix,
		record.LastUsedAt, record.ExpiresAt, record.RevokedAt, record.CreatedAt)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to execute query", err)

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			return nil, services.ValidatePGError(pgErr, reflect.TypeOf(mmodel.ApiToken{}).Name())
		}

		return nil, err
	}

	created := record.ToEntity()
	r.helper.AfterCreate(ctx, created.ID, created)

	return created, nil
}

// Find retrieves an api token entity through the cache using the provided ID.
func (r *ApiTokenPostgreSQLRepository) Find(ctx context.Context, id string) (*mmodel.ApiToken, error) {
	return r.helper.CachedGet(ctx, id, func(ctx context.Context) (*mmodel.ApiToken, error) {
		return r.findOne(ctx, `SELECT `+apiTokenColumns+` FROM api_token WHERE id = $1`, id)
	})
}

func (r *ApiTokenPostgreSQLRepository) findOne(ctx context.Context, query string, args ...any) (*mmodel.ApiToken, error) {
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.find_api_token")
	defer span.End()

	db, err := r.connection.GetDB()
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get database connection", err)

		return nil, err
	}

	token, err := r.scan(db.QueryRowContext(ctx, query, args...))
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to scan row", err)

		if errors.Is(err, sql.ErrNoRows) {
			return nil, pkg.ValidateBusinessError(constant.ErrEntityNotFound, reflect.TypeOf(mmodel.ApiToken{}).Name())
		}

		return nil, err
	}

	return token, nil
}

// FindByUser retrieves a user's tokens, optionally including revoked ones.
func (r *ApiTokenPostgreSQLRepository) FindByUser(ctx context.Context, userID string, includeRevoked bool) ([]*mmodel.ApiToken, error) {
	filters := map[string]any{"user_id": userID, "include_revoked": includeRevoked}

	return r.helper.CachedList(ctx, filters, func(ctx context.Context) ([]*mmodel.ApiToken, error) {
		tracer := pkg.NewTracerFromContext(ctx)

		ctx, span := tracer.Start(ctx, "postgres.find_api_tokens_by_user")
		defer span.End()

		db, err := r.connection.GetDB()
		if err != nil {
			mopentelemetry.HandleSpanError(&span, "Failed to get database connection", err)

			return nil, err
		}

		query := `SELECT ` + apiTokenColumns + ` FROM api_token WHERE user_id = $1`
		if !includeRevoked {
			query += ` AND revoked_at IS NULL`
		}

		query += ` ORDER BY created_at DESC`

		rows, err := db.QueryContext(ctx, query, userID)
		if err != nil {
			mopentelemetry.HandleSpanError(&span, "Failed to query database", err)

			return nil, err
		}
		defer rows.Close()

		var tokens []*mmodel.ApiToken

		for rows.Next() {
			token, err := r.scan(rows)
			if err != nil {
				mopentelemetry.HandleSpanError(&span, "Failed to scan row", err)

				return nil, err
			}

			tokens = append(tokens, token)
		}

		if err := rows.Err(); err != nil {
			mopentelemetry.HandleSpanError(&span, "Failed to get rows", err)

			return nil, err
		}

		return tokens, nil
	})
}

// FindActiveByName retrieves a user's unrevoked, unexpired token by name.
func (r *ApiTokenPostgreSQLRepository) FindActiveByName(ctx context.Context, userID, name string) (*mmodel.ApiToken, error) {
	return r.findOne(ctx, `SELECT `+apiTokenColumns+` FROM api_token
		WHERE user_id = $1 AND name = $2 AND revoked_at IS NULL
		  AND (expires_at IS NULL OR expires_at > now())
		ORDER BY created_at DESC LIMIT 1`, userID, name)
}

// FindByTokenHash retrieves a token by its hash; the auth hot path.
func (r *ApiTokenPostgreSQLRepository) FindByTokenHash(ctx context.Context, tokenHash []byte) (*mmodel.ApiToken, error) {
	return r.findOne(ctx, `SELECT `+apiTokenColumns+` FROM api_token WHERE token_hash = $1`, tokenHash)
}

// Revoke marks a token revoked and purges its caches.
func (r *ApiTokenPostgreSQLRepository) Revoke(ctx context.Context, id string) error {
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.revoke_api_token")
	defer span.End()

	entity, err := r.findOne(ctx, `SELECT `+apiTokenColumns+` FROM api_token WHERE id = $1`, id)
	if err != nil {
		return err
	}

	db, err := r.connection.GetDB()
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get database connection", err)

		return err
	}

	result, err := db.ExecContext(ctx, `UPDATE api_token SET revoked_at = now() WHERE id = $1 AND revoked_at IS NULL`, id)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to execute database query", err)

		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get rows affected", err)

		return err
	}

	if rowsAffected == 0 {
		return pkg.ValidateBusinessError(constant.ErrEntityNotFound, reflect.TypeOf(mmodel.ApiToken{}).Name())
	}

	r.helper.AfterDelete(ctx, id, entity)

	return nil
}

// RevokeAllByName revokes every active token a user holds under a name and
// returns how many were revoked.
func (r *ApiTokenPostgreSQLRepository) RevokeAllByName(ctx context.Context, userID, name string) (int, error) {
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.revoke_api_tokens_by_name")
	defer span.End()

	db, err := r.connection.GetDB()
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get database connection", err)

		return 0, err
	}

	result, err := db.ExecContext(ctx, `UPDATE api_token SET revoked_at = now()
		WHERE user_id = $1 AND name = $2 AND revoked_at IS NULL`, userID, name)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to execute database query", err)

		return 0, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get rows affected", err)

		return 0, err
	}

	r.helper.Invalidate(ctx,
		"api_token:user:"+userID,
		"api_token:name:"+userID+":"+name,
		"api_token:list",
	)

	return int(rowsAffected), nil
}

// UpdateLastUsed touches the last-used timestamp. The touch only drops the
// token's own entity key; it does not fan out to the user's token lists.
func (r *ApiTokenPostgreSQLRepository) UpdateLastUsed(ctx context.Context, id string) error {
	db, err := r.connection.GetDB()
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, `UPDATE api_token SET last_used_at = now() WHERE id = $1`, id); err != nil {
		return err
	}

	if r.helper.Enabled() {
		r.helper.Cache().DeleteByKey(ctx, r.helper.EntityKey(id))
	}

	return nil
}
