package coursemember

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/computor-org/computor/internal/adapters/postgres/cachedrepo"
	"github.com/computor-org/computor/internal/services"
	"github.com/computor-org/computor/pkg"
	"github.com/computor-org/computor/pkg/constant"
	"github.com/computor-org/computor/pkg/mcache"
	"github.com/computor-org/computor/pkg/mmodel"
	"github.com/computor-org/computor/pkg/mopentelemetry"
	"github.com/computor-org/computor/pkg/mpostgres"
)

const courseMemberColumns = `id, course_id, user_id, course_role_id, created_at, updated_at, deleted_at`

// CourseMemberPostgreSQLRepository is a Postgresql-specific implementation of the Repository.
type CourseMemberPostgreSQLRepository struct {
	connection  *mpostgres.PostgresConnection
	tableName   string
	helper      *cachedrepo.Helper[mmodel.CourseMember]
	permissions PermissionInvalidator
}

// NewCourseMemberPostgreSQLRepository returns a new instance of CourseMemberPostgreSQLRepository
// using the given postgres connection. permissions may be nil when no
// permission cache is attached.
func NewCourseMemberPostgreSQLRepository(pc *mpostgres.PostgresConnection, cache *mcache.Cache, permissions PermissionInvalidator) *CourseMemberPostgreSQLRepository {
	r := &CourseMemberPostgreSQLRepository{
		connection:  pc,
		tableName:   "course_member",
		permissions: permissions,
	}

	r.helper = cachedrepo.NewHelper[mmodel.CourseMember](cache, r)

	return r
}

// EntityType implements cachedrepo.Cacheable.
func (r *CourseMemberPostgreSQLRepository) EntityType() string { return "course_member" }

// TTL implements cachedrepo.Cacheable.
func (r *CourseMemberPostgreSQLRepository) TTL() time.Duration { return 15 * time.Minute }

// EntityTags implements cachedrepo.Cacheable. Membership writes reach every
// per-course view for that course plus the member's own user views.
func (r *CourseMemberPostgreSQLRepository) EntityTags(_ context.Context, member *mmodel.CourseMember) []string {
	tags := []string{
		"course_member:" + member.ID,
		"course_member:list",
		"course_member_id:" + member.ID,
		"cm_grading:" + member.ID,
	}

	if member.CourseID != "" {
		tags = append(tags,
			"course_member:course:"+member.CourseID,
			"course:"+member.CourseID,
			"course_id:"+member.CourseID,
			"student_view:"+member.CourseID,
			"tutor_view:"+member.CourseID,
			"lecturer_view:"+member.CourseID,
		)
	}

	if member.UserID != "" {
		tags = append(tags,
			"course_member:user:"+member.UserID,
			"user:"+member.UserID,
		)
	}

	if member.CourseRoleID != "" {
		tags = append(tags, "course_member:role:"+member.CourseRoleID)
	}

	return tags
}

// ListTags implements cachedrepo.Cacheable.
func (r *CourseMemberPostgreSQLRepository) ListTags(filters map[string]any) []string {
	tags := []string{"course_member:list"}

	if courseID, ok := filters["course_id"].(string); ok && courseID != "" {
		tags = append(tags, "course_member:course:"+courseID, "course:"+courseID)
	}

	if userID, ok := filters["user_id"].(string); ok && userID != "" {
		tags = append(tags, "course_member:user:"+userID, "user:"+userID)
	}

	if roleID, ok := filters["course_role_id"].(string); ok && roleID != "" {
		tags = append(tags, "course_member:role:"+roleID)
	}

	return tags
}

func (r *CourseMemberPostgreSQLRepository) invalidatePermissions(ctx context.Context, member *mmodel.CourseMember) {
	if r.permissions != nil && member.UserID != "" {
		r.permissions.InvalidateUserCourseMemberships(ctx, member.UserID)
	}
}

func (r *CourseMemberPostgreSQLRepository) scan(row interface{ Scan(...any) error }) (*mmodel.CourseMember, error) {
	record := &CourseMemberPostgreSQLModel{}

	if err := row.Scan(&record.ID, &record.CourseID, &record.UserID, &record.CourseRoleID,
		&record.CreatedAt, &record.UpdatedAt, &record.DeletedAt); err != nil {
		return nil, err
	}

	return record.ToEntity(), nil
}

// Create a new course member entity into Postgresql and returns it.
func (r *CourseMemberPostgreSQLRepository) Create(ctx context.Context, member *mmodel.CourseMember) (*mmodel.CourseMember, error) {
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.create_course_member")
	defer span.End()

	db, err := r.connection.GetDB()
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get database connection", err)

		return nil, err
	}

	record := &CourseMemberPostgreSQLModel{}
	record.FromEntity(member)

	_, err = db.ExecContext(ctx, `INSERT INTO course_member VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		record.ID, record.CourseID, record.UserID, record.CourseRoleID,
		record.CreatedAt, record.UpdatedAt, record.DeletedAt)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to execute query", err)

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			return nil, services.ValidatePGError(pgErr, reflect.TypeOf(mmodel.CourseMember{}).Name())
		}

		return nil, err
	}

	created := record.ToEntity()
	r.helper.AfterCreate(ctx, created.ID, created)
	r.invalidatePermissions(ctx, created)

	return created, nil
}

// Find retrieves a course member entity through the cache using the provided ID.
func (r *CourseMemberPostgreSQLRepository) Find(ctx context.Context, id string) (*mmodel.CourseMember, error) {
	return r.helper.CachedGet(ctx, id, func(ctx context.Context) (*mmodel.CourseMember, error) {
		return r.findOne(ctx, `SELECT `+courseMemberColumns+` FROM course_member WHERE id = $1 AND deleted_at IS NULL`, id)
	})
}

func (r *CourseMemberPostgreSQLRepository) findOne(ctx context.Context, query string, args ...any) (*mmodel.CourseMember, error) {
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.find_course_member")
	defer span.End()

	db, err := r.connection.GetDB()
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get database connection", err)

		return nil, err
	}

	member, err := r.scan(db.QueryRowContext(ctx, query, args...))
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to scan row", err)

		if errors.Is(err, sql.ErrNoRows) {
			return nil, pkg.ValidateBusinessError(constant.ErrEntityNotFound, reflect.TypeOf(mmodel.CourseMember{}).Name())
		}

		return nil, err
	}

	return member, nil
}

func (r *CourseMemberPostgreSQLRepository) query(ctx context.Context, query string, args ...any) ([]*mmodel.CourseMember, error) {
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.find_all_course_members")
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

	var members []*mmodel.CourseMember

	for rows.Next() {
		member, err := r.scan(rows)
		if err != nil {
			mopentelemetry.HandleSpanError(&span, "Failed to scan row", err)

			return nil, err
		}

		members = append(members, member)
	}

	if err := rows.Err(); err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get rows", err)

		return nil, err
	}

	return members, nil
}

// FindByCourse retrieves all members of a course.
func (r *CourseMemberPostgreSQLRepository) FindByCourse(ctx context.Context, courseID string) ([]*mmodel.CourseMember, error) {
	filters := map[string]any{"course_id": courseID}

	return r.helper.CachedList(ctx, filters, func(ctx context.Context) ([]*mmodel.CourseMember, error) {
		return r.query(ctx, `SELECT `+courseMemberColumns+` FROM course_member
			WHERE course_id = $1 AND deleted_at IS NULL ORDER BY created_at`, courseID)
	})
}

// FindByUser retrieves all memberships of a user.
func (r *CourseMemberPostgreSQLRepository) FindByUser(ctx context.Context, userID string) ([]*mmodel.CourseMember, error) {
	filters := map[string]any{"user_id": userID}

	return r.helper.CachedList(ctx, filters, func(ctx context.Context) ([]*mmodel.CourseMember, error) {
		return r.query(ctx, `SELECT `+courseMemberColumns+` FROM course_member
			WHERE user_id = $1 AND deleted_at IS NULL ORDER BY created_at`, userID)
	})
}

// FindByCourseAndUser retrieves the membership of a user in a course.
func (r *CourseMemberPostgreSQLRepository) FindByCourseAndUser(ctx context.Context, courseID, userID string) (*mmodel.CourseMember, error) {
	return r.findOne(ctx, `SELECT `+courseMemberColumns+` FROM course_member
		WHERE course_id = $1 AND user_id = $2 AND deleted_at IS NULL`, courseID, userID)
}

// FindByRole retrieves all members of a course holding the given role.
func (r *CourseMemberPostgreSQLRepository) FindByRole(ctx context.Context, courseID, roleID string) ([]*mmodel.CourseMember, error) {
	filters := map[string]any{"course_id": courseID, "course_role_id": roleID}

	return r.helper.CachedList(ctx, filters, func(ctx context.Context) ([]*mmodel.CourseMember, error) {
		return r.query(ctx, `SELECT `+courseMemberColumns+` FROM course_member
			WHERE course_id = $1 AND course_role_id = $2 AND deleted_at IS NULL ORDER BY created_at`, courseID, roleID)
	})
}

// ListByIDs retrieves course member entities using the provided IDs.
func (r *CourseMemberPostgreSQLRepository) ListByIDs(ctx context.Context, ids []string) ([]*mmodel.CourseMember, error) {
	return r.query(ctx, `SELECT `+courseMemberColumns+` FROM course_member
		WHERE id = ANY($1) AND deleted_at IS NULL ORDER BY created_at`, pq.Array(ids))
}

// Update a course member entity into Postgresql and returns the updated entity.
func (r *CourseMemberPostgreSQLRepository) Update(ctx context.Context, id string, member *mmodel.CourseMember) (*mmodel.CourseMember, error) {
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.update_course_member")
	defer span.End()

	old, err := r.findOne(ctx, `SELECT `+courseMemberColumns+` FROM course_member WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return nil, err
	}

	db, err := r.connection.GetDB()
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get database connection", err)

		return nil, err
	}

	result, err := db.ExecContext(ctx, `UPDATE course_member SET course_role_id = $1, updated_at = $2
		WHERE id = $3 AND deleted_at IS NULL`,
		member.CourseRoleID, time.Now(), id)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to execute query", err)

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			return nil, services.ValidatePGError(pgErr, reflect.TypeOf(mmodel.CourseMember{}).Name())
		}

		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get rows affected", err)

		return nil, err
	}

	if rowsAffected == 0 {
		return nil, pkg.ValidateBusinessError(constant.ErrEntityNotFound, reflect.TypeOf(mmodel.CourseMember{}).Name())
	}

	updated, err := r.findOne(ctx, `SELECT `+courseMemberColumns+` FROM course_member WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return nil, err
	}

	r.helper.AfterUpdate(ctx, id, old, updated)
	r.invalidatePermissions(ctx, updated)

	return updated, nil
}

// Delete soft-removes a course member entity using the provided ID.
func (r *CourseMemberPostgreSQLRepository) Delete(ctx context.Context, id string) error {
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.delete_course_member")
	defer span.End()

	entity, err := r.findOne(ctx, `SELECT `+courseMemberColumns+` FROM course_member WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return err
	}

	db, err := r.connection.GetDB()
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get database connection", err)

		return err
	}

	result, err := db.ExecContext(ctx, `UPDATE course_member SET deleted_at = now() WHERE id = $1 AND deleted_at IS NULL`, id)
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
		return pkg.ValidateBusinessError(constant.ErrEntityNotFound, reflect.TypeOf(mmodel.CourseMember{}).Name())
	}

	r.helper.AfterDelete(ctx, id, entity)
	r.invalidatePermissions(ctx, entity)

	return nil
}
