package submissiongroup

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

const submissionGroupColumns = `id, course_id, course_content_id, max_group_size, properties, created_at, updated_at`

// SubmissionGroupPostgreSQLRepository is a Postgresql-specific implementation of the Repository.
type SubmissionGroupPostgreSQLRepository struct {
	connection *mpostgres.PostgresConnection
	tableName  string
	helper     *cachedrepo.Helper[mmodel.SubmissionGroup]
}

// NewSubmissionGroupPostgreSQLRepository returns a new instance of
// SubmissionGroupPostgreSQLRepository using the given postgres connection.
func NewSubmissionGroupPostgreSQLRepository(pc *mpostgres.PostgresConnection, cache *mcache.Cache) *SubmissionGroupPostgreSQLRepository {
	r := &SubmissionGroupPostgreSQLRepository{
		connection: pc,
		tableName:  "submission_group",
	}

	r.helper = cachedrepo.NewHelper[mmodel.SubmissionGroup](cache, r)

	return r
}

// EntityType implements cachedrepo.Cacheable.
func (r *SubmissionGroupPostgreSQLRepository) EntityType() string { return "submission_group" }

// TTL implements cachedrepo.Cacheable. Group→course and group→content
// bindings are immutable, so a long TTL is safe.
func (r *SubmissionGroupPostgreSQLRepository) TTL() time.Duration { return time.Hour }

// EntityTags implements cachedrepo.Cacheable.
func (r *SubmissionGroupPostgreSQLRepository) EntityTags(_ context.Context, group *mmodel.SubmissionGroup) []string {
	tags := []string{
		"submission_group:" + group.ID,
		"submission_group:list",
	}

	if group.CourseID != "" {
		tags = append(tags,
			"course:"+group.CourseID,
			"course_id:"+group.CourseID,
			"student_view:"+group.CourseID,
			"tutor_view:"+group.CourseID,
			"lecturer_view:"+group.CourseID,
		)
	}

	if group.CourseContentID != "" {
		tags = append(tags, "course_content:"+group.CourseContentID)
	}

	return tags
}

// ListTags implements cachedrepo.Cacheable.
func (r *SubmissionGroupPostgreSQLRepository) ListTags(filters map[string]any) []string {
	tags := []string{"submission_group:list"}

	if contentID, ok := filters["course_content_id"].(string); ok && contentID != "" {
		tags = append(tags, "course_content:"+contentID)
	}

	if memberID, ok := filters["course_member_id"].(string); ok && memberID != "" {
		tags = append(tags, "course_member:"+memberID)
	}

	return tags
}

func (r *SubmissionGroupPostgreSQLRepository) scan(row interface{ Scan(...any) error }) (*mmodel.SubmissionGroup, error) {
	record := &SubmissionGroupPostgreSQLModel{}

	if err := row.Scan(&record.ID, &record.CourseID, &record.CourseContentID, &record.MaxGroupSize,
		&record.Properties, &record.CreatedAt, &record.UpdatedAt); err != nil {
		return nil, err
	}

	return record.ToEntity(), nil
}

// Create a new submission group entity into Postgresql and returns it.
func (r *SubmissionGroupPostgreSQLRepository) Create(ctx context.Context, group *mmodel.SubmissionGroup) (*mmodel.SubmissionGroup, error) {
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.create_submission_group")
	defer span.End()

	db, err := r.connection.GetDB()
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get database connection", err)

		return nil, err
	}

	record := &SubmissionGroupPostgreSQLModel{}
	record.FromEntity(group)

	_, err = db.ExecContext(ctx, `INSERT INTO submission_group VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		record.ID, record.CourseID, record.CourseContentID, record.MaxGroupSize,
		record.Properties, record.CreatedAt, record.UpdatedAt)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to execute query", err)

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			return nil, services.ValidatePGError(pgErr, reflect.TypeOf(mmodel.SubmissionGroup{}).Name())
		}

		return nil, err
	}

	created := record.ToEntity()
	r.helper.AfterCreate(ctx, created.ID, created)

	return created, nil
}

// Find retrieves a submission group entity through the cache using the provided ID.
func (r *SubmissionGroupPostgreSQLRepository) Find(ctx context.Context, id string) (*mmodel.SubmissionGroup, error) {
	return r.helper.CachedGet(ctx, id, func(ctx context.Context) (*mmodel.SubmissionGroup, error) {
		tracer := pkg.NewTracerFromContext(ctx)

		ctx, span := tracer.Start(ctx, "postgres.find_submission_group")
		defer span.End()

		db, err := r.connection.GetDB()
		if err != nil {
			mopentelemetry.HandleSpanError(&span, "Failed to get database connection", err)

			return nil, err
		}

		group, err := r.scan(db.QueryRowContext(ctx,
			`SELECT `+submissionGroupColumns+` FROM submission_group WHERE id = $1`, id))
		if err != nil {
			mopentelemetry.HandleSpanError(&span, "Failed to scan row", err)

			if errors.Is(err, sql.ErrNoRows) {
				return nil, pkg.ValidateBusinessError(constant.ErrEntityNotFound, reflect.TypeOf(mmodel.SubmissionGroup{}).Name())
			}

			return nil, err
		}

		return group, nil
	})
}

func (r *SubmissionGroupPostgreSQLRepository) query(ctx context.Context, query string, args ...any) ([]*mmodel.SubmissionGroup, error) {
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.find_all_submission_groups")
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

	var groups []*mmodel.SubmissionGroup

	for rows.Next() {
		group, err := r.scan(rows)
		if err != nil {
			mopentelemetry.HandleSpanError(&span, "Failed to scan row", err)

			return nil, err
		}

		groups = append(groups, group)
	}

	if err := rows.Err(); err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get rows", err)

		return nil, err
	}

	return groups, nil
}

// FindByContent retrieves all submission groups of a course content.
func (r *SubmissionGroupPostgreSQLRepository) FindByContent(ctx context.Context, courseContentID string) ([]*mmodel.SubmissionGroup, error) {
	filters := map[string]any{"course_content_id": courseContentID}

	return r.helper.CachedList(ctx, filters, func(ctx context.Context) ([]*mmodel.SubmissionGroup, error) {
		return r.query(ctx, `SELECT `+submissionGroupColumns+` FROM submission_group
			WHERE course_content_id = $1 ORDER BY created_at`, courseContentID)
	})
}

// FindByMember retrieves every submission group a course member belongs to.
func (r *SubmissionGroupPostgreSQLRepository) FindByMember(ctx context.Context, courseMemberID string) ([]*mmodel.SubmissionGroup, error) {
	filters := map[string]any{"course_member_id": courseMemberID}

	return r.helper.CachedList(ctx, filters, func(ctx context.Context) ([]*mmodel.SubmissionGroup, error) {
		return r.query(ctx, `SELECT sg.id, sg.course_id, sg.course_content_id, sg.max_group_size, sg.properties, sg.created_at, sg.updated_at
			FROM submission_group sg
			JOIN submission_group_member sgm ON sgm.submission_group_id = sg.id
			WHERE sgm.course_member_id = $1 ORDER BY sg.created_at`, courseMemberID)
	})
}

// AddMember links a course member into a submission group and invalidates the
// group's fan-out.
func (r *SubmissionGroupPostgreSQLRepository) AddMember(ctx context.Context, groupID, courseMemberID string) (*mmodel.SubmissionGroupMember, error) {
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.add_submission_group_member")
	defer span.End()

	group, err := r.Find(ctx, groupID)
	if err != nil {
		return nil, err
	}

	db, err := r.connection.GetDB()
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get database connection", err)

		return nil, err
	}

	member := &mmodel.SubmissionGroupMember{
		ID:                pkg.GenerateUUIDv7().String(),
		SubmissionGroupID: groupID,
		CourseMemberID:    courseMemberID,
		CreatedAt:         time.Now(),
	}

	_, err = db.ExecContext(ctx, `INSERT INTO submission_group_member VALUES ($1, $2, $3, $4)`,
		member.ID, member.SubmissionGroupID, member.CourseMemberID, member.CreatedAt)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to execute query", err)

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			return nil, services.ValidatePGError(pgErr, reflect.TypeOf(mmodel.SubmissionGroupMember{}).Name())
		}

		return nil, err
	}

	tags := r.EntityTags(ctx, group)
	tags = append(tags, "course_member:"+courseMemberID, "cm_grading:"+courseMemberID)
	r.helper.Invalidate(ctx, tags...)

	return member, nil
}

// MemberIDs returns the course member ids of a group. The membership set is
// cacheable relative to the group because writes flow through AddMember.
func (r *SubmissionGroupPostgreSQLRepository) MemberIDs(ctx context.Context, groupID string) ([]string, error) {
	var cacheKey string

	if cache := r.helper.Cache(); cache != nil {
		cacheKey = cache.K("submission_group", "members", groupID)

		var cached []string
		if r.helper.CacheAsideGet(ctx, cacheKey, &cached) {
			return cached, nil
		}
	}

	db, err := r.connection.GetDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT course_member_id FROM submission_group_member WHERE submission_group_id = $1 ORDER BY created_at`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}

		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if cacheKey != "" {
		r.helper.CacheAside(ctx, cacheKey, ids, []string{"submission_group:" + groupID})
	}

	return ids, nil
}

// Delete removes a submission group and its membership rows.
func (r *SubmissionGroupPostgreSQLRepository) Delete(ctx context.Context, id string) error {
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.delete_submission_group")
	defer span.End()

	entity, err := r.Find(ctx, id)
	if err != nil {
		return err
	}

	db, err := r.connection.GetDB()
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get database connection", err)

		return err
	}

	if _, err := db.ExecContext(ctx, `DELETE FROM submission_group_member WHERE submission_group_id = $1`, id); err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to execute database query", err)

		return err
	}

	result, err := db.ExecContext(ctx, `DELETE FROM submission_group WHERE id = $1`, id)
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
		return pkg.ValidateBusinessError(constant.ErrEntityNotFound, reflect.TypeOf(mmodel.SubmissionGroup{}).Name())
	}

	r.helper.AfterDelete(ctx, id, entity)

	return nil
}
