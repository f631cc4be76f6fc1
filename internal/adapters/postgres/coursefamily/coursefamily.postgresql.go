package coursefamily

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

const courseFamilyColumns = `id, organization_id, title, path, properties, created_at, updated_at, deleted_at`

// CourseFamilyPostgreSQLRepository is a Postgresql-specific implementation of the Repository.
type CourseFamilyPostgreSQLRepository struct {
	connection *mpostgres.PostgresConnection
	tableName  string
	helper     *cachedrepo.Helper[mmodel.CourseFamily]
}

// NewCourseFamilyPostgreSQLRepository returns a new instance of CourseFamilyPostgreSQLRepository
// using the given postgres connection.
func NewCourseFamilyPostgreSQLRepository(pc *mpostgres.PostgresConnection, cache *mcache.Cache) *CourseFamilyPostgreSQLRepository {
	r := &CourseFamilyPostgreSQLRepository{
		connection: pc,
		tableName:  "course_family",
	}

	r.helper = cachedrepo.NewHelper[mmodel.CourseFamily](cache, r)

	return r
}

// EntityType implements cachedrepo.Cacheable.
func (r *CourseFamilyPostgreSQLRepository) EntityType() string { return "course_family" }

// TTL implements cachedrepo.Cacheable.
func (r *CourseFamilyPostgreSQLRepository) TTL() time.Duration { return 30 * time.Minute }

// EntityTags implements cachedrepo.Cacheable.
func (r *CourseFamilyPostgreSQLRepository) EntityTags(_ context.Context, family *mmodel.CourseFamily) []string {
	tags := []string{
		"course_family:" + family.ID,
		"course_family:list",
		"course_family_id:" + family.ID,
	}

	if family.OrganizationID != "" {
		tags = append(tags,
			"course_family:org:"+family.OrganizationID,
			"org:"+family.OrganizationID,
		)
	}

	return tags
}

// ListTags implements cachedrepo.Cacheable.
func (r *CourseFamilyPostgreSQLRepository) ListTags(filters map[string]any) []string {
	tags := []string{"course_family:list"}

	if orgID, ok := filters["organization_id"].(string); ok && orgID != "" {
		tags = append(tags, "course_family:org:"+orgID, "org:"+orgID)
	}

	return tags
}

func (r *CourseFamilyPostgreSQLRepository) scan(row interface{ Scan(...any) error }) (*mmodel.CourseFamily, error) {
	record := &CourseFamilyPostgreSQLModel{}

	if err := row.Scan(&record.ID, &record.OrganizationID, &record.Title, &record.Path,
		&record.Properties, &record.CreatedAt, &record.UpdatedAt, &record.DeletedAt); err != nil {
		return nil, err
	}

	return record.ToEntity(), nil
}

// Create a new course family entity into Postgresql and returns it.
func (r *CourseFamilyPostgreSQLRepository) Create(ctx context.Context, family *mmodel.CourseFamily) (*mmodel.CourseFamily, error) {
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.create_course_family")
	defer span.End()

	db, err := r.connection.GetDB()
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get database connection", err)

		return nil, err
	}

	record := &CourseFamilyPostgreSQLModel{}
	record.FromEntity(family)

	_, err = db.ExecContext(ctx, `INSERT INTO course_family VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		record.ID, record.OrganizationID, record.Title, record.Path,
		record.Properties, record.CreatedAt, record.UpdatedAt, record.DeletedAt)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to execute query", err)

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			return nil, services.ValidatePGError(pgErr, reflect.TypeOf(mmodel.CourseFamily{}).Name())
		}

		return nil, err
	}

	created := record.ToEntity()
	r.helper.AfterCreate(ctx, created.ID, created)

	return created, nil
}

// Find retrieves a course family entity through the cache using the provided ID.
func (r *CourseFamilyPostgreSQLRepository) Find(ctx context.Context, id string) (*mmodel.CourseFamily, error) {
	return r.helper.CachedGet(ctx, id, func(ctx context.Context) (*mmodel.CourseFamily, error) {
		return r.findFromStore(ctx, id)
	})
}

func (r *CourseFamilyPostgreSQLRepository) findFromStore(ctx context.Context, id string) (*mmodel.CourseFamily, error) {
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.find_course_family")
	defer span.End()

	db, err := r.connection.GetDB()
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get database connection", err)

		return nil, err
	}

	family, err := r.scan(db.QueryRowContext(ctx,
		`SELECT `+courseFamilyColumns+` FROM course_family WHERE id = $1 AND deleted_at IS NULL`, id))
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to scan row", err)

		if errors.Is(err, sql.ErrNoRows) {
			return nil, pkg.ValidateBusinessError(constant.ErrEntityNotFound, reflect.TypeOf(mmodel.CourseFamily{}).Name())
		}

		return nil, err
	}

	return family, nil
}

// FindByOrganization retrieves all course families of an organization.
func (r *CourseFamilyPostgreSQLRepository) FindByOrganization(ctx context.Context, organizationID string) ([]*mmodel.CourseFamily, error) {
	filters := map[string]any{"organization_id": organizationID}

	return r.helper.CachedList(ctx, filters, func(ctx context.Context) ([]*mmodel.CourseFamily, error) {
		tracer := pkg.NewTracerFromContext(ctx)

		ctx, span := tracer.Start(ctx, "postgres.find_course_families_by_org")
		defer span.End()

		db, err := r.connection.GetDB()
		if err != nil {
			mopentelemetry.HandleSpanError(&span, "Failed to get database connection", err)

			return nil, err
		}

		rows, err := db.QueryContext(ctx,
			`SELECT `+courseFamilyColumns+` FROM course_family
			 WHERE organization_id = $1 AND deleted_at IS NULL ORDER BY created_at DESC`, organizationID)
		if err != nil {
			mopentelemetry.HandleSpanError(&span, "Failed to query database", err)

			return nil, err
		}
		defer rows.Close()

		var families []*mmodel.CourseFamily

		for rows.Next() {
			family, err := r.scan(rows)
			if err != nil {
				mopentelemetry.HandleSpanError(&span, "Failed to scan row", err)

				return nil, err
			}

			families = append(families, family)
		}

		if err := rows.Err(); err != nil {
			mopentelemetry.HandleSpanError(&span, "Failed to get rows", err)

			return nil, err
		}

		return families, nil
	})
}

// Update a course family entity into Postgresql and returns the updated entity.
func (r *CourseFamilyPostgreSQLRepository) Update(ctx context.Context, id string, family *mmodel.CourseFamily) (*mmodel.CourseFamily, error) {
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.update_course_family")
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

	result, err := db.ExecContext(ctx, `UPDATE course_family SET title = $1, properties = $2, updated_at = $3
		WHERE id = $4 AND deleted_at IS NULL`,
		family.Title, mpostgres.JSONBMap(family.Properties), time.Now(), id)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to execute query", err)

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			return nil, services.ValidatePGError(pgErr, reflect.TypeOf(mmodel.CourseFamily{}).Name())
		}

		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get rows affected", err)

		return nil, err
	}

	if rowsAffected == 0 {
		return nil, pkg.ValidateBusinessError(constant.ErrEntityNotFound, reflect.TypeOf(mmodel.CourseFamily{}).Name())
	}

	updated, err := r.findFromStore(ctx, id)
	if err != nil {
		return nil, err
	}

	r.helper.AfterUpdate(ctx, id, old, updated)

	return updated, nil
}

// Delete soft-removes a course family entity using the provided ID.
func (r *CourseFamilyPostgreSQLRepository) Delete(ctx context.Context, id string) error {
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.delete_course_family")
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

	result, err := db.ExecContext(ctx, `UPDATE course_family SET deleted_at = now() WHERE id = $1 AND deleted_at IS NULL`, id)
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
		return pkg.ValidateBusinessError(constant.ErrEntityNotFound, reflect.TypeOf(mmodel.CourseFamily{}).Name())
	}

	r.helper.AfterDelete(ctx, id, entity)

	return nil
}
