package course

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

const courseColumns = `id, course_family_id, organization_id, title, path, properties, archived_at, created_at, updated_at, deleted_at`

// CoursePostgreSQLRepository is a Postgresql-specific implementation of the Repository.
type CoursePostgreSQLRepository struct {
	connection *mpostgres.PostgresConnection
	tableName  string
	helper     *cachedrepo.Helper[mmodel.Course]
}

// NewCoursePostgreSQLRepository returns a new instance of CoursePostgreSQLRepository
// using the given postgres connection.
func NewCoursePostgreSQLRepository(pc *mpostgres.PostgresConnection, cache *mcache.Cache) *CoursePostgreSQLRepository {
	r := &CoursePostgreSQLRepository{
		connection: pc,
		tableName:  "course",
	}

	r.helper = cachedrepo.NewHelper[mmodel.Course](cache, r)

	return r
}

// EntityType implements cachedrepo.Cacheable.
func (r *CoursePostgreSQLRepository) EntityType() string { return "course" }

// TTL implements cachedrepo.Cacheable.
func (r *CoursePostgreSQLRepository) TTL() time.Duration { return 15 * time.Minute }

// EntityTags implements cachedrepo.Cacheable. Course writes reach every
// per-course aggregated view, so the bucket tags ride along.
func (r *CoursePostgreSQLRepository) EntityTags(_ context.Context, course *mmodel.Course) []string {
	tags := []string{
		"course:" + course.ID,
		"course:list",
		"course_id:" + course.ID,
		"student_view:" + course.ID,
		"tutor_view:" + course.ID,
		"lecturer_view:" + course.ID,
	}

	if course.CourseFamilyID != "" {
		tags = append(tags,
			"course:family:"+course.CourseFamilyID,
			"course_family:"+course.CourseFamilyID,
		)
	}

	if course.OrganizationID != "" {
		tags = append(tags, "org:"+course.OrganizationID)
	}

	return tags
}

// ListTags implements cachedrepo.Cacheable.
func (r *CoursePostgreSQLRepository) ListTags(filters map[string]any) []string {
	tags := []string{"course:list"}

	if familyID, ok := filters["course_family_id"].(string); ok && familyID != "" {
		tags = append(tags, "course:family:"+familyID, "course_family:"+familyID)
	}

	return tags
}

func (r *CoursePostgreSQLRepository) scan(row interface{ Scan(...any) error }) (*mmodel.Course, error) {
	record := &CoursePostgreSQLModel{}

	if err := row.Scan(&record.ID, &record.CourseFamilyID, &record.OrganizationID, &record.Title,
		&record.Path, &record.Properties, &record.ArchivedAt,
		&record.CreatedAt, &record.UpdatedAt, &record.DeletedAt); err != nil {
		return nil, err
	}

	return record.ToEntity(), nil
}

// Create a new course entity into Postgresql and returns it.
func (r *CoursePostgreSQLRepository) Create(ctx context.Context, course *mmodel.Course) (*mmodel.Course, error) {
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.create_course")
	defer span.End()

	db, err := r.connection.GetDB()
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get database connection", err)

		return nil, err
	}

	record := &CoursePostgreSQLModel{}
	record.FromEntity(course)

	_, err = db.ExecContext(ctx, `INSERT INTO course VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		record.ID, record.CourseFamilyID, record.OrganizationID, record.Title, record.Path,
		record.Properties, record.ArchivedAt, record.CreatedAt, record.UpdatedAt, record.DeletedAt)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to execute query", err)

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			return nil, services.ValidatePGError(pgErr, reflect.TypeOf(mmodel.Course{}).Name())
		}

		return nil, err
	}

	created := record.ToEntity()
	r.helper.AfterCreate(ctx, created.ID, created)

	return created, nil
}

// Find retrieves a course entity through the cache using the provided ID.
func (r *CoursePostgreSQLRepository) Find(ctx context.Context, id string) (*mmodel.Course, error) {
	return r.helper.CachedGet(ctx, id, func(ctx context.Context) (*mmodel.Course, error) {
		return r.findFromStore(ctx, id)
	})
}

func (r *CoursePostgreSQLRepository) findFromStore(ctx context.Context, id string) (*mmodel.Course, error) {
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.find_course")
	defer span.End()

	db, err := r.connection.GetDB()
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get database connection", err)

		return nil, err
	}

	course, err := r.scan(db.QueryRowContext(ctx,
		`SELECT `+courseColumns+` FROM course WHERE id = $1 AND deleted_at IS NULL`, id))
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to scan row", err)

		if errors.Is(err, sql.ErrNoRows) {
			return nil, pkg.ValidateBusinessError(constant.ErrEntityNotFound, reflect.TypeOf(mmodel.Course{}).Name())
		}

		return nil, err
	}

	return course, nil
}

// FindByCourseFamily retrieves all courses of a course family.
func (r *CoursePostgreSQLRepository) FindByCourseFamily(ctx context.Context, courseFamilyID string) ([]*mmodel.Course, error) {
	filters := map[string]any{"course_family_id": courseFamilyID}

	return r.helper.CachedList(ctx, filters, func(ctx context.Context) ([]*mmodel.Course, error) {
		return r.queryCourses(ctx, `SELECT `+courseColumns+` FROM course
			WHERE course_family_id = $1 AND deleted_at IS NULL ORDER BY created_at DESC`, courseFamilyID)
	})
}

// FindActive retrieves all non-archived courses.
func (r *CoursePostgreSQLRepository) FindActive(ctx context.Context) ([]*mmodel.Course, error) {
	filters := map[string]any{"active": true}

	return r.helper.CachedList(ctx, filters, func(ctx context.Context) ([]*mmodel.Course, error) {
		return r.queryCourses(ctx, `SELECT `+courseColumns+` FROM course
			WHERE archived_at IS NULL AND deleted_at IS NULL ORDER BY created_at DESC`)
	})
}

func (r *CoursePostgreSQLRepository) queryCourses(ctx context.Context, query string, args ...any) ([]*mmodel.Course, error) {
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.find_all_courses")
	defer span.End()

	db, err := r.connection.GetDB()
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get database connection", err)

		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to query database", err)

		return nil, err
	}
	defer rows.Close()

	var courses []*mmodel.Course

	for rows.Next() {
		course, err := r.scan(rows)
		if err != nil {
			mopentelemetry.HandleSpanError(&span, "Failed to scan row", err)

			return nil, err
		}

		courses = append(courses, course)
	}

	if err := rows.Err(); err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get rows", err)

		return nil, err
	}

	return courses, nil
}

// Update a course entity into Postgresql and returns the updated entity.
func (r *CoursePostgreSQLRepository) Update(ctx context.Context, id string, course *mmodel.Course) (*mmodel.Course, error) {
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.update_course")
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

	result, err := db.ExecContext(ctx, `UPDATE course SET title = $1, properties = $2, archived_at = $3, updated_at = $4
		WHERE id = $5 AND deleted_at IS NULL`,
		course.Title, mpostgres.JSONBMap(course.Properties), course.ArchivedAt, time.Now(), id)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to execute query", err)

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			return nil, services.ValidatePGError(pgErr, reflect.TypeOf(mmodel.Course{}).Name())
		}

		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get rows affected", err)

		return nil, err
	}

	if rowsAffected == 0 {
		return nil, pkg.ValidateBusinessError(constant.ErrEntityNotFound, reflect.TypeOf(mmodel.Course{}).Name())
	}

	updated, err := r.findFromStore(ctx, id)
	if err != nil {
		return nil, err
	}

	r.helper.AfterUpdate(ctx, id, old, updated)

	return updated, nil
}

// Archive marks a course as archived and purges every projection over it.
func (r *CoursePostgreSQLRepository) Archive(ctx context.Context, id string) error {
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.archive_course")
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

	result, err := db.ExecContext(ctx,
		`UPDATE course SET archived_at = now(), updated_at = now() WHERE id = $1 AND archived_at IS NULL AND deleted_at IS NULL`, id)
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
		return pkg.ValidateBusinessError(constant.ErrEntityNotFound, reflect.TypeOf(mmodel.Course{}).Name())
	}

	now := time.Now()
	entity.ArchivedAt = &now
	r.helper.AfterUpdate(ctx, id, entity, entity)

	return nil
}

// Delete soft-removes a course entity using the provided ID.
func (r *CoursePostgreSQLRepository) Delete(ctx context.Context, id string) error {
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.delete_course")
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

	result, err := db.ExecContext(ctx, `UPDATE course SET deleted_at = now() WHERE id = $1 AND deleted_at IS NULL`, id)
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
		return pkg.ValidateBusinessError(constant.ErrEntityNotFound, reflect.TypeOf(mmodel.Course{}).Name())
	}

	r.helper.AfterDelete(ctx, id, entity)

	return nil
}
