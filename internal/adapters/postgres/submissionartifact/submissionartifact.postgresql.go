package submissionartifact

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"strconv"
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

const artifactColumns = `id, submission_group_id, uploaded_by_course_member_id, submit, content_size, properties, uploaded_at, created_at`

// SubmissionArtifactPostgreSQLRepository is a Postgresql-specific implementation of the Repository.
type SubmissionArtifactPostgreSQLRepository struct {
	connection *mpostgres.PostgresConnection
	tableName  string
	helper     *cachedrepo.Helper[mmodel.SubmissionArtifact]
}

// NewSubmissionArtifactPostgreSQLRepository returns a new instance of
// SubmissionArtifactPostgreSQLRepository using the given postgres connection.
func NewSubmissionArtifactPostgreSQLRepository(pc *mpostgres.PostgresConnection, cache *mcache.Cache) *SubmissionArtifactPostgreSQLRepository {
	r := &SubmissionArtifactPostgreSQLRepository{
		connection: pc,
		tableName:  "submission_artifact",
	}

	r.helper = cachedrepo.NewHelper[mmodel.SubmissionArtifact](cache, r)

	return r
}

// EntityType implements cachedrepo.Cacheable.
func (r *SubmissionArtifactPostgreSQLRepository) EntityType() string { return "submission_artifact" }

// TTL implements cachedrepo.Cacheable.
func (r *SubmissionArtifactPostgreSQLRepository) TTL() time.Duration { return 5 * time.Minute }

// EntityTags implements cachedrepo.Cacheable. An artifact write reaches the
// group, every member's grading dashboard, and each per-course view bucket.
// The group → (course, members) resolution happens once, here, at write time;
// the mapping is immutable relative to the group so the lookup is cacheable.
func (r *SubmissionArtifactPostgreSQLRepository) EntityTags(ctx context.Context, artifact *mmodel.SubmissionArtifact) []string {
	tags := []string{
		"submission_artifact:" + artifact.ID,
		"submission_artifact:list",
	}

	if artifact.SubmissionGroupID != "" {
		tags = append(tags,
			"submission_group:"+artifact.SubmissionGroupID,
			"submission_artifact:group:"+artifact.SubmissionGroupID,
			"submission_artifact:latest:"+artifact.SubmissionGroupID,
		)

		courseID, memberIDs := r.courseAndMembersForGroup(ctx, artifact.SubmissionGroupID)
		if courseID != "" {
			tags = append(tags,
				"course:"+courseID,
				"course_id:"+courseID,
				"student_view:"+courseID,
				"tutor_view:"+courseID,
				"lecturer_view:"+courseID,
			)
		}

		for _, memberID := range memberIDs {
			tags = append(tags,
				"cm_grading:"+memberID,
				"course_member:"+memberID,
			)
		}
	}

	if artifact.UploadedByCourseMemberID != "" {
		tags = append(tags,
			"course_member:"+artifact.UploadedByCourseMemberID,
			"submission_artifact:member:"+artifact.UploadedByCourseMemberID,
		)
	}

	tags = append(tags, "submission_artifact:submit:"+strconv.FormatBool(artifact.Submit))

	return tags
}

// ListTags implements cachedrepo.Cacheable.
func (r *SubmissionArtifactPostgreSQLRepository) ListTags(filters map[string]any) []string {
	tags := []string{"submission_artifact:list"}

	if groupID, ok := filters["submission_group_id"].(string); ok && groupID != "" {
		tags = append(tags,
			"submission_artifact:group:"+groupID,
			"submission_group:"+groupID,
		)
	}

	if memberID, ok := filters["uploaded_by_course_member_id"].(string); ok && memberID != "" {
		tags = append(tags,
			"submission_artifact:member:"+memberID,
			"course_member:"+memberID,
		)
	}

	if submit, ok := filters["submit"].(bool); ok {
		tags = append(tags, "submission_artifact:submit:"+strconv.FormatBool(submit))
	}

	return tags
}

type groupFanout struct {
	CourseID  string   `msgpack:"courseId"`
	MemberIDs []string `msgpack:"memberIds"`
}

// courseAndMembersForGroup resolves (course_id, member ids) for a group with a
// cache-aside lookup pinned to the group tag.
func (r *SubmissionArtifactPostgreSQLRepository) courseAndMembersForGroup(ctx context.Context, groupID string) (string, []string) {
	var cacheKey string

	if cache := r.helper.Cache(); cache != nil {
		cacheKey = cache.K("submission_group", "fanout", groupID)

		var cached groupFanout
		if r.helper.CacheAsideGet(ctx, cacheKey, &cached) {
			return cached.CourseID, cached.MemberIDs
		}
	}

	db, err := r.connection.GetDB()
	if err != nil {
		return "", nil
	}

	rows, err := db.QueryContext(ctx, `SELECT sg.course_id, sgm.course_member_id
		FROM submission_group sg
		LEFT JOIN submission_group_member sgm ON sgm.submission_group_id = sg.id
		WHERE sg.id = $1`, groupID)
	if err != nil {
		pkg.NewLoggerFromContext(ctx).Warnf("failed to resolve group fan-out for %s: %v", groupID, err)
		return "", nil
	}
	defer rows.Close()

	var fanout groupFanout

	for rows.Next() {
		var memberID sql.NullString
		if err := rows.Scan(&fanout.CourseID, &memberID); err != nil {
			return "", nil
		}

		if memberID.Valid {
			fanout.MemberIDs = append(fanout.MemberIDs, memberID.String)
		}
	}

	if err := rows.Err(); err != nil {
		return "", nil
	}

	if cacheKey != "" && fanout.CourseID != "" {
		r.helper.CacheAside(ctx, cacheKey, fanout, []string{"submission_group:" + groupID})
	}

	return fanout.CourseID, fanout.MemberIDs
}

func (r *SubmissionArtifactPostgreSQLRepository) scan(row interface{ Scan(...any) error }) (*mmodel.SubmissionArtifact, error) {
	record := &SubmissionArtifactPostgreSQLModel{}

	if err := row.Scan(&record.ID, &record.SubmissionGroupID, &record.UploadedByCourseMemberID,
		&record.Submit, &record.ContentSize, &record.Properties,
		&record.UploadedAt, &record.CreatedAt); err != nil {
		return nil, err
	}

	return record.ToEntity(), nil
}

// Create inserts a new immutable artifact and fans the invalidation out to
// the group, the course view buckets and each member's grading dashboard.
func (r *SubmissionArtifactPostgreSQLRepository) Create(ctx context.Context, artifact *mmodel.SubmissionArtifact) (*mmodel.SubmissionArtifact, error) {
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.create_submission_artifact")
	defer span.End()

	db, err := r.connection.GetDB()
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get database connection", err)

		return nil, err
	}

	record := &SubmissionArtifactPostgreSQLModel{}
	record.FromEntity(artifact)

	_, err = db.ExecContext(ctx, `INSERT INTO submission_artifact VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		record.ID, record.SubmissionGroupID, record.UploadedByCourseMemberID,
		record.Submit, record.ContentSize, record.Properties,
		record.UploadedAt, record.CreatedAt)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to execute query", err)

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			return nil, services.ValidatePGError(pgErr, reflect.TypeOf(mmodel.SubmissionArtifact{}).Name())
		}

		return nil, err
	}

	created := record.ToEntity()
	r.helper.AfterCreate(ctx, created.ID, created)

	return created, nil
}

// Find retrieves a submission artifact entity through the cache using the provided ID.
func (r *SubmissionArtifactPostgreSQLRepository) Find(ctx context.Context, id string) (*mmodel.SubmissionArtifact, error) {
	return r.helper.CachedGet(ctx, id, func(ctx context.Context) (*mmodel.SubmissionArtifact, error) {
		return r.findOne(ctx, `SELECT `+artifactColumns+` FROM submission_artifact WHERE id = $1`, id)
	})
}

func (r *SubmissionArtifactPostgreSQLRepository) findOne(ctx context.Context, query string, args ...any) (*mmodel.SubmissionArtifact, error) {
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.find_submission_artifact")
	defer span.End()

	db, err := r.connection.GetDB()
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get database connection", err)

		return nil, err
	}

	artifact, err := r.scan(db.QueryRowContext(ctx, query, args...))
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to scan row", err)

		if errors.Is(err, sql.ErrNoRows) {
			return nil, pkg.ValidateBusinessError(constant.ErrEntityNotFound, reflect.TypeOf(mmodel.SubmissionArtifact{}).Name())
		}

		return nil, err
	}

	return artifact, nil
}

func (r *SubmissionArtifactPostgreSQLRepository) query(ctx context.Context, query string, args ...any) ([]*mmodel.SubmissionArtifact, error) {
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.find_all_submission_artifacts")
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

	var artifacts []*mmodel.SubmissionArtifact

	for rows.Next() {
		artifact, err := r.scan(rows)
		if err != nil {
			mopentelemetry.HandleSpanError(&span, "Failed to scan row", err)

			return nil, err
		}

		artifacts = append(artifacts, artifact)
	}

	if err := rows.Err(); err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get rows", err)

		return nil, err
	}

	return artifacts, nil
}

// FindBySubmissionGroup retrieves all artifacts of a group newest first.
func (r *SubmissionArtifactPostgreSQLRepository) FindBySubmissionGroup(ctx context.Context, submissionGroupID string) ([]*mmodel.SubmissionArtifact, error) {
	filters := map[string]any{"submission_group_id": submissionGroupID}

	return r.helper.CachedList(ctx, filters, func(ctx context.Context) ([]*mmodel.SubmissionArtifact, error) {
		return r.query(ctx, `SELECT `+artifactColumns+` FROM submission_artifact
			WHERE submission_group_id = $1 ORDER BY created_at DESC`, submissionGroupID)
	})
}

// FindOfficialSubmissions retrieves the submit=true artifacts of a group.
func (r *SubmissionArtifactPostgreSQLRepository) FindOfficialSubmissions(ctx context.Context, submissionGroupID string) ([]*mmodel.SubmissionArtifact, error) {
	filters := map[string]any{"submission_group_id": submissionGroupID, "submit": true}

	return r.helper.CachedList(ctx, filters, func(ctx context.Context) ([]*mmodel.SubmissionArtifact, error) {
		return r.query(ctx, `SELECT `+artifactColumns+` FROM submission_artifact
			WHERE submission_group_id = $1 AND submit = true ORDER BY created_at DESC`, submissionGroupID)
	})
}

// FindLatestByGroup retrieves the latest submitted artifact of a group with a
// dedicated cache-aside entry pinned to the group.
func (r *SubmissionArtifactPostgreSQLRepository) FindLatestByGroup(ctx context.Context, submissionGroupID string) (*mmodel.SubmissionArtifact, error) {
	var cacheKey string

	if cache := r.helper.Cache(); cache != nil {
		cacheKey = cache.Key(r.EntityType(), "latest:"+submissionGroupID)

		var cached mmodel.SubmissionArtifact
		if r.helper.CacheAsideGet(ctx, cacheKey, &cached) {
			return &cached, nil
		}
	}

	artifact, err := r.findOne(ctx, `SELECT `+artifactColumns+` FROM submission_artifact
		WHERE submission_group_id = $1 AND submit = true ORDER BY created_at DESC LIMIT 1`, submissionGroupID)
	if err != nil {
		return nil, err
	}

	if cacheKey != "" {
		tags := r.EntityTags(ctx, artifact)
		tags = append(tags, "submission_artifact:latest:"+submissionGroupID)
		r.helper.CacheAside(ctx, cacheKey, artifact, tags)
	}

	return artifact, nil
}

// Delete removes an artifact (cascade-deletion bookkeeping of the stored
// object itself is owned by the storage collaborator).
func (r *SubmissionArtifactPostgreSQLRepository) Delete(ctx context.Context, id string) error {
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.delete_submission_artifact")
	defer span.End()

	entity, err := r.findOne(ctx, `SELECT `+artifactColumns+` FROM submission_artifact WHERE id = $1`, id)
	if err != nil {
		return err
	}

	db, err := r.connection.GetDB()
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get database connection", err)

		return err
	}

	result, err := db.ExecContext(ctx, `DELETE FROM submission_artifact WHERE id = $1`, id)
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
		return pkg.ValidateBusinessError(constant.ErrEntityNotFound, reflect.TypeOf(mmodel.SubmissionArtifact{}).Name())
	}

	r.helper.AfterDelete(ctx, id, entity)

	return nil
}
