package coursecontent

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
	"github.com/computor-org/computor/pkg/ltree"
	"github.com/computor-org/computor/pkg/mcache"
	"github.com/computor-org/computor/pkg/mmodel"
	"github.com/computor-org/computor/pkg/mopentelemetry"
	"github.com/computor-org/computor/pkg/mpostgres"
)

const courseContentColumns = `id, course_id, course_content_type_id, course_content_kind_id, title, path, position, properties, archived_at, created_at, updated_at`

// CourseContentPostgreSQLRepository is a Postgresql-specific implementation of the Repository.
type CourseContentPostgreSQLRepository struct {
	connection *mpostgres.PostgresConnection
	tableName  string
	helper     *cachedrepo.Helper[mmodel.CourseContent]
}

// NewCourseContentPostgreSQLRepository returns a new instance of CourseContentPostgreSQLRepository
// using the given postgres connection.
func NewCourseContentPostgreSQLRepository(pc *mpostgres.PostgresConnection, cache *mcache.Cache) *CourseContentPostgreSQLRepository {
	r := &CourseContentPostgreSQLRepository{
		connection: pc,
		tableName:  "course_content",
	}

	r.helper = cachedrepo.NewHelper[mmodel.CourseContent](cache, r)

	return r
}

// EntityType implements cachedrepo.Cacheable.
func (r *CourseContentPostgreSQLRepository) EntityType() string { return "course_content" }

// TTL implements cachedrepo.Cacheable.
func (r *CourseContentPostgreSQLRepository) TTL() time.Duration { return 10 * time.Minute }

// EntityTags implements cachedrepo.Cacheable. Student and tutor views embed
// content rows (including deployment status), so every per-course view bucket
// is part of the superset.
func (r *CourseContentPostgreSQLRepository) EntityTags(_ context.Context, content *mmodel.CourseContent) []string {
	tags := []string{
		"course_content:" + content.ID,
		"course_content:list",
		"course_content_id:" + content.ID,
	}

	if content.CourseID != "" {
		tags = append(tags,
			"course:"+content.CourseID,
			"course_id:"+content.CourseID,
			"student_view:"+content.CourseID,
			"tutor_view:"+content.CourseID,
			"lecturer_view:"+content.CourseID,
		)
	}

	return tags
}

// ListTags implements cachedrepo.Cacheable.
func (r *CourseContentPostgreSQLRepository) ListTags(filters map[string]any) []string {
	tags := []string{"course_content:list"}

	if courseID, ok := filters["course_id"].(string); ok && courseID != "" {
		tags = append(tags, "course:"+courseID)
	}

	return tags
}

func (r *CourseContentPostgreSQLRepository) scan(row interface{ Scan(...any) error }) (*mmodel.CourseContent, error) {
	record := &CourseContentPostgreSQLModel{}

	if err := row.Scan(&record.ID, &record.CourseID, &record.CourseContentTypeID, &record.CourseContentKindID,
		&record.Title, &record.Path, &record.Position, &record.Properties,
		&record.ArchivedAt, &record.CreatedAt, &record.UpdatedAt); err != nil {
		return nil, err
	}

	return record.ToEntity(), nil
}

// Create a new course content entity into Postgresql and returns it.
func (r *CourseContentPostgreSQLRepository) Create(ctx context.Context, content *mmodel.CourseContent) (*mmodel.CourseContent, error) {
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.create_course_content")
	defer span.End()

	db, err := r.connection.GetDB()
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get database connection", err)

		return nil, err
	}

	record := &CourseContentPostgreSQLModel{}
	record.FromEntity(content)

	_, err = db.ExecContext(ctx, `INSERT INTO course_content VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		record.ID, record.CourseID, record.CourseContentTypeID, record.CourseContentKindID,
		record.Title, record.Path, record.Position, record.Properties,
		record.ArchivedAt, record.CreatedAt, record.UpdatedAt)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to execute query", err)

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			return nil, services.ValidatePGError(pgErr, reflect.TypeOf(mmodel.CourseContent{}).Name())
		}

		return nil, err
	}

	created := record.ToEntity()
	r.helper.AfterCreate(ctx, created.ID, created)

	return created, nil
}

// Find retrieves a course content entity through the cache using the provided ID.
func (r *CourseContentPostgreSQLRepository) Find(ctx context.Context, id string) (*mmodel.CourseContent, error) {
	return r.helper.CachedGet(ctx, id, func(ctx context.Context) (*mmodel.CourseContent, error) {
		return r.findFromStore(ctx, id)
	})
}

func (r *CourseContentPostgreSQLRepository) findFromStore(ctx context.Context, id string) (*mmodel.CourseContent, error) {
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.find_course_content")
	defer span.End()

	db, err := r.connection.GetDB()
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get database connection", err)

		return nil, err
	}

	content, err := r.scan(db.QueryRowContext(ctx,
		`SELECT `+courseContentColumns+` FROM course_content WHERE id = $1 AND archived_at IS NULL`, id))
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to scan row", err)

		if errors.Is(err, sql.ErrNoRows) {
			return nil, pkg.ValidateBusinessError(constant.ErrEntityNotFound, reflect.TypeOf(mmodel.CourseContent{}).Name())
		}

		return nil, err
	}

	return content, nil
}

// FindByCourse retrieves all contents of a course ordered by position.
func (r *CourseContentPostgreSQLRepository) FindByCourse(ctx context.Context, courseID string) ([]*mmodel.CourseContent, error) {
	filters := map[string]any{"course_id": courseID}

	return r.helper.CachedList(ctx, filters, func(ctx context.Context) ([]*mmodel.CourseContent, error) {
		return r.queryContents(ctx, `SELECT `+courseContentColumns+` FROM course_content
			WHERE course_id = $1 AND archived_at IS NULL ORDER BY position, path`, courseID)
	})
}

// FindSubmittableByCourse retrieves the submittable contents of a course, the
// input rows of every rollup.
func (r *CourseContentPostgreSQLRepository) FindSubmittableByCourse(ctx context.Context, courseID string) ([]*mmodel.CourseContent, error) {
	filters := map[string]any{"course_id": courseID, "submittable": true}

	return r.helper.CachedList(ctx, filters, func(ctx context.Context) ([]*mmodel.CourseContent, error) {
		return r.queryContents(ctx, `SELECT cc.id, cc.course_id, cc.course_content_type_id, cc.course_content_kind_id,
				cc.title, cc.path, cc.position, cc.properties, cc.archived_at, cc.created_at, cc.updated_at
			FROM course_content cc
			JOIN course_content_kind cck ON cck.id = cc.course_content_kind_id
			WHERE cc.course_id = $1 AND cck.submittable = true AND cc.archived_at IS NULL
			ORDER BY cc.path`, courseID)
	})
}

// FindByPathPrefix retrieves contents of a course under a path prefix using
// the ltree descendant-of operator.
func (r *CourseContentPostgreSQLRepository) FindByPathPrefix(ctx context.Context, courseID string, prefix ltree.Path) ([]*mmodel.CourseContent, error) {
	return r.queryContents(ctx, `SELECT `+courseContentColumns+` FROM course_content
		WHERE course_id = $1 AND path <@ $2 AND archived_at IS NULL ORDER BY path`, courseID, prefix)
}

func (r *CourseContentPostgreSQLRepository) queryContents(ctx context.Context, query string, args ...any) ([]*mmodel.CourseContent, error) {
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.find_all_course_contents")
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

	var contents []*mmodel.CourseContent

	for rows.Next() {
		content, err := r.scan(rows)
		if err != nil {
			mopentelemetry.HandleSpanError(&span, "Failed to scan row", err)

			return nil, err
		}

		contents = append(contents, content)
	}

	if err := rows.Err(); err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get rows", err)

		return nil, err
	}

	return contents, nil
}

// Update a course content entity into Postgresql and returns the updated entity.
func (r *CourseContentPostgreSQLRepository) Update(ctx context.Context, id string, content *mmodel.CourseContent) (*mmodel.CourseContent, error) {
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.update_course_content")
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

	result, err := db.ExecContext(ctx, `UPDATE course_content
		SET title = $1, path = $2, position = $3, course_content_type_id = $4, properties = $5, updated_at = $6
		WHERE id = $7 AND archived_at IS NULL`,
		content.Title, content.Path, content.Position, content.CourseContentTypeID,
		mpostgres.JSONBMap(content.Properties), time.Now(), id)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to execute query", err)

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			return nil, services.ValidatePGError(pgErr, reflect.TypeOf(mmodel.CourseContent{}).Name())
		}

		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get rows affected", err)

		return nil, err
	}

	if rowsAffected == 0 {
		return nil, pkg.ValidateBusinessError(constant.ErrEntityNotFound, reflect.TypeOf(mmodel.CourseContent{}).Name())
	}

	updated, err := r.findFromStore(ctx, id)
	if err != nil {
		return nil, err
	}

	r.helper.AfterUpdate(ctx, id, old, updated)

	return updated, nil
}

// Archive soft-deletes a course content entity using the provided ID.
func (r *CourseContentPostgreSQLRepository) Archive(ctx context.Context, id string) error {
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.archive_course_content")
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
		`UPDATE course_content SET archived_at = now(), updated_at = now() WHERE id = $1 AND archived_at IS NULL`, id)
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
		return pkg.ValidateBusinessError(constant.ErrEntityNotFound, reflect.TypeOf(mmodel.CourseContent{}).Name())
	}

	r.helper.AfterDelete(ctx, id, entity)

	return nil
}
