package organization

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/computor-org/computor/internal/adapters/postgres/cachedrepo"
	"github.com/computor-org/computor/internal/services"
	"github.com/computor-org/computor/pkg"
	"github.com/computor-org/computor/pkg/constant"
	"github.com/computor-org/computor/pkg/ltree"
	"github.com/computor-org/computor/pkg/mcache"
	"github.com/computor-org/computor/pkg/mmodel"
	"github.com/computor-org/computor/pkg/mopentelemetry"
	"github.com/computor-org/computor/pkg/mpostgres"
	"github.com/computor-org/computor/pkg/net/http"
)

// OrganizationPostgreSQLRepository is a Postgresql-specific implementation of the Repository.
type OrganizationPostgreSQLRepository struct {
	connection *mpostgres.PostgresConnection
	tableName  string
	helper     *cachedrepo.Helper[mmodel.Organization]
}

// NewOrganizationPostgreSQLRepository returns a new instance of OrganizationPostgreSQLRepository
// using the given postgres connection.
func NewOrganizationPostgreSQLRepository(pc *mpostgres.PostgresConnection, cache *mcache.Cache) *OrganizationPostgreSQLRepository {
	r := &OrganizationPostgreSQLRepository{
		connection: pc,
		tableName:  "organization",
	}

	r.helper = cachedrepo.NewHelper[mmodel.Organization](cache, r)

	return r
}

// EntityType implements cachedrepo.Cacheable.
func (r *OrganizationPostgreSQLRepository) EntityType() string { return "organization" }

// TTL implements cachedrepo.Cacheable.
func (r *OrganizationPostgreSQLRepository) TTL() time.Duration { return 30 * time.Minute }

// EntityTags implements cachedrepo.Cacheable. Organization writes fan out to
// the family lists hanging below it.
func (r *OrganizationPostgreSQLRepository) EntityTags(_ context.Context, org *mmodel.Organization) []string {
	return []string{
		"org:" + org.ID,
		"org:list",
		"organization_id:" + org.ID,
		"course_family:org:" + org.ID,
	}
}

// ListTags implements cachedrepo.Cacheable.
func (r *OrganizationPostgreSQLRepository) ListTags(_ map[string]any) []string {
	return []string{"org:list"}
}

// Create a new organization entity into Postgresql and returns it.
func (r *OrganizationPostgreSQLRepository) Create(ctx context.Context, org *mmodel.Organization) (*mmodel.Organization, error) {
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.create_organization")
	defer span.End()

	db, err := r.connection.GetDB()
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get database connection", err)

		return nil, err
	}

	record := &OrganizationPostgreSQLModel{}
	record.FromEntity(org)

	ctx, spanExec := tracer.Start(ctx, "postgres.create.exec")

	result, err := db.ExecContext(ctx, `INSERT INTO organization VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		record.ID,
		record.Title,
		record.Path,
		record.Properties,
		record.CreatedAt,
		record.UpdatedAt,
		record.DeletedAt,
	)
	if err != nil {
		mopentelemetry.HandleSpanError(&spanExec, "Failed to execute query", err)

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			return nil, services.ValidatePGError(pgErr, reflect.TypeOf(mmodel.Organization{}).Name())
		}

		return nil, err
	}

	spanExec.End()

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get rows affected", err)

		return nil, err
	}

	if rowsAffected == 0 {
		err := pkg.ValidateBusinessError(constant.ErrEntityNotFound, reflect.TypeOf(mmodel.Organization{}).Name())

		mopentelemetry.HandleSpanError(&span, "Failed to create organization. Rows affected is 0", err)

		return nil, err
	}

	created := record.ToEntity()
	r.helper.AfterCreate(ctx, created.ID, created)

	return created, nil
}

// Find retrieves an organization entity from the database (through the cache)
// using the provided ID.
func (r *OrganizationPostgreSQLRepository) Find(ctx context.Context, id string) (*mmodel.Organization, error) {
	return r.helper.CachedGet(ctx, id, func(ctx context.Context) (*mmodel.Organization, error) {
		return r.findFromStore(ctx, id)
	})
}

func (r *OrganizationPostgreSQLRepository) findFromStore(ctx context.Context, id string) (*mmodel.Organization, error) {
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.find_organization")
	defer span.End()

	db, err := r.connection.GetDB()
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get database connection", err)

		return nil, err
	}

	record := &OrganizationPostgreSQLModel{}

	row := db.QueryRowContext(ctx, `SELECT id, title, path, properties, created_at, updated_at, deleted_at
		FROM organization WHERE id = $1 AND deleted_at IS NULL`, id)
	if err := row.Scan(&record.ID, &record.Title, &record.Path, &record.Properties,
		&record.CreatedAt, &record.UpdatedAt, &record.DeletedAt); err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to scan row", err)

		if errors.Is(err, sql.ErrNoRows) {
			return nil, pkg.ValidateBusinessError(constant.ErrEntityNotFound, reflect.TypeOf(mmodel.Organization{}).Name())
		}

		return nil, err
	}

	return record.ToEntity(), nil
}

// FindByPath retrieves an organization by its ltree path.
func (r *OrganizationPostgreSQLRepository) FindByPath(ctx context.Context, path ltree.Path) (*mmodel.Organization, error) {
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.find_organization_by_path")
	defer span.End()

	db, err := r.connection.GetDB()
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get database connection", err)

		return nil, err
	}

	record := &OrganizationPostgreSQLModel{}

	row := db.QueryRowContext(ctx, `SELECT id, title, path, properties, created_at, updated_at, deleted_at
		FROM organization WHERE path = $1 AND deleted_at IS NULL`, path)
	if err := row.Scan(&record.ID, &record.Title, &record.Path, &record.Properties,
		&record.CreatedAt, &record.UpdatedAt, &record.DeletedAt); err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to scan row", err)

		if errors.Is(err, sql.ErrNoRows) {
			return nil, pkg.ValidateBusinessError(constant.ErrEntityNotFound, reflect.TypeOf(mmodel.Organization{}).Name())
		}

		return nil, err
	}

	return record.ToEntity(), nil
}

// FindAll retrieves organization entities from the database.
func (r *OrganizationPostgreSQLRepository) FindAll(ctx context.Context, filter http.Pagination) ([]*mmodel.Organization, error) {
	filters := map[string]any{"limit": filter.Limit, "page": filter.Page, "sort_order": filter.SortOrder}

	return r.helper.CachedList(ctx, filters, func(ctx context.Context) ([]*mmodel.Organization, error) {
		tracer := pkg.NewTracerFromContext(ctx)

		ctx, span := tracer.Start(ctx, "postgres.find_all_organizations")
		defer span.End()

		db, err := r.connection.GetDB()
		if err != nil {
			mopentelemetry.HandleSpanError(&span, "Failed to get database connection", err)

			return nil, err
		}

		findAll := squirrel.Select("id", "title", "path", "properties", "created_at", "updated_at", "deleted_at").
			From(r.tableName).
			Where(squirrel.Eq{"deleted_at": nil}).
			OrderBy("created_at " + strings.ToUpper(filter.SortOrder)).
			Limit(pkg.SafeIntToUint64(filter.Limit)).
			Offset(pkg.SafeIntToUint64((filter.Page - 1) * filter.Limit)).
			PlaceholderFormat(squirrel.Dollar)

		query, args, err := findAll.ToSql()
		if err != nil {
			mopentelemetry.HandleSpanError(&span, "Failed to build query", err)

			return nil, err
		}

		rows, err := db.QueryContext(ctx, query, args...)
		if err != nil {
			mopentelemetry.HandleSpanError(&span, "Failed to query database", err)

			return nil, err
		}
		defer rows.Close()

		var organizations []*mmodel.Organization

		for rows.Next() {
			var record OrganizationPostgreSQLModel
			if err := rows.Scan(&record.ID, &record.Title, &record.Path, &record.Properties,
				&record.CreatedAt, &record.UpdatedAt, &record.DeletedAt); err != nil {
				mopentelemetry.HandleSpanError(&span, "Failed to scan row", err)

				return nil, err
			}

			organizations = append(organizations, record.ToEntity())
		}

		if err := rows.Err(); err != nil {
			mopentelemetry.HandleSpanError(&span, "Failed to get rows", err)

			return nil, err
		}

		return organizations, nil
	})
}

// Update an organization entity into Postgresql and returns the updated entity.
func (r *OrganizationPostgreSQLRepository) Update(ctx context.Context, id string, org *mmodel.Organization) (*mmodel.Organization, error) {
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.update_organization")
	defer span.End()

	old, err := r.findFromStore(ctx, id)
	if err != nil {
		return nil, err
	}

	db, err := r.connection.GetDB()
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get database connection", err)

		return nil, err
	}

	record := &OrganizationPostgreSQLModel{}
	record.FromEntity(org)
	record.UpdatedAt = time.Now()

	ctx, spanExec := tracer.Start(ctx, "postgres.update.exec")

	result, err := db.ExecContext(ctx, `UPDATE organization SET title = $1, properties = $2, updated_at = $3
		WHERE id = $4 AND deleted_at IS NULL`,
		record.Title, record.Properties, record.UpdatedAt, id)
	if err != nil {
		mopentelemetry.HandleSpanError(&spanExec, "Failed to execute query", err)

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			return nil, services.ValidatePGError(pgErr, reflect.TypeOf(mmodel.Organization{}).Name())
		}

		return nil, err
	}

	spanExec.End()

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get rows affected", err)

		return nil, err
	}

	if rowsAffected == 0 {
		err := pkg.ValidateBusinessError(constant.ErrEntityNotFound, reflect.TypeOf(mmodel.Organization{}).Name())

		mopentelemetry.HandleSpanError(&span, "Failed to update organization. Rows affected is 0", err)

		return nil, err
	}

	updated, err := r.findFromStore(ctx, id)
	if err != nil {
		return nil, err
	}

	r.helper.AfterUpdate(ctx, id, old, updated)

	return updated, nil
}

// Delete soft-removes an organization entity from the database using the provided ID.
func (r *OrganizationPostgreSQLRepository) Delete(ctx context.Context, id string) error {
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.delete_organization")
	defer span.End()

	entity, err := r.findFromStore(ctx, id)
	if err != nil {
		return err
	}

	db, err := r.connection.GetDB()
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get database connection", err)

		return err
	}

	result, err := db.ExecContext(ctx, `UPDATE organization SET deleted_at = now() WHERE id = $1 AND deleted_at IS NULL`, id)
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
		err := pkg.ValidateBusinessError(constant.ErrEntityNotFound, reflect.TypeOf(mmodel.Organization{}).Name())

		mopentelemetry.HandleSpanError(&span, "Failed to delete organization. Rows affected is 0", err)

		return err
	}

	r.helper.AfterDelete(ctx, id, entity)

	return nil
}
