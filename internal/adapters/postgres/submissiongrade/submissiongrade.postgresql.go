package submissiongrade

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

const gradeColumns = `id, artifact_id, graded_by_course_member_id, grade, status, feedback, graded_at, created_at`

// SubmissionGradePostgreSQLRepository is a Postgresql-specific implementation of the Repository.
type SubmissionGradePostgreSQLRepository struct {
	connection *mpostgres.PostgresConnection
	tableName  string
	helper     *cachedrepo.Helper[mmodel.SubmissionGrade]
}

// NewSubmissionGradePostgreSQLRepository returns a new instance of
// SubmissionGradePostgreSQLRepository using the given postgres connection.
func NewSubmissionGradePostgreSQLRepository(pc *mpostgres.PostgresConnection, cache *mcache.Cache) *SubmissionGradePostgreSQLRepository {
	r := &SubmissionGradePostgreSQLRepository{
		connection: pc,
		tableName:  "submission_grade",
	}

	r.helper = cachedrepo.NewHelper[mmodel.SubmissionGrade](cache, r)

	return r
}

// EntityType implements cachedrepo.Cacheable.
func (r *SubmissionGradePostgreSQLRepository) EntityType() string { return "submission_grade" }

// TTL implements cachedrepo.Cacheable.
func (r *SubmissionGradePostgreSQLRepository) TTL() time.Duration { return 5 * time.Minute }

// EntityTags implements cachedrepo.Cacheable. A grade feeds three
// projections: the artifact's latest status, the group's aggregated status
// and every group member's grading dashboard. The artifact → group → members
// resolution happens once, at write time; the mapping is immutable relative
// to the artifact so the lookup is cacheable.
func (r *SubmissionGradePostgreSQLRepository) EntityTags(ctx context.Context, grade *mmodel.SubmissionGrade) []string {
	tags := []string{
		"submission_grade:" + grade.ID,
		"submission_grade:list",
	}

	if grade.ArtifactID != "" {
		tags = append(tags,
			"submission_grade:artifact:"+grade.ArtifactID,
			"submission_artifact:"+grade.ArtifactID,
		)

		courseID, memberIDs := r.courseAndMembersForArtifact(ctx, grade.ArtifactID)
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
				"course_member_id:"+memberID,
			)
		}
	}

	if grade.GradedByCourseMemberID != "" {
		tags = append(tags, "submission_grade:grader:"+grade.GradedByCourseMemberID)
	}

	tags = append(tags, "submission_grade:status:"+strconv.Itoa(int(grade.Status)))

	return tags
}

// ListTags implements cachedrepo.Cacheable.
func (r *SubmissionGradePostgreSQLRepository) ListTags(filters map[string]any) []string {
	tags := []string{"submission_grade:list"}

	if artifactID, ok := filters["artifact_id"].(string); ok && artifactID != "" {
		tags = append(tags,
			"submission_grade:artifact:"+artifactID,
			"submission_artifact:"+artifactID,
		)
	}

	if graderID, ok := filters["graded_by_course_member_id"].(string); ok && graderID != "" {
		tags = append(tags, "submission_grade:grader:"+graderID)
	}

	if status, ok := filters["status"].(int); ok {
		tags = append(tags, "submission_grade:status:"+strconv.Itoa(status))
	}

	return tags
}

type artifactFanout struct {
	CourseID  string   `msgpack:"courseId"`
	MemberIDs []string `msgpack:"memberIds"`
}

// courseAndMembersForArtifact resolves grade → artifact → group → members
// once per artifact, cache-aside under the artifact's group tag.
func (r *SubmissionGradePostgreSQLRepository) courseAndMembersForArtifact(ctx context.Context, artifactID string) (string, []string) {
	var cacheKey string

	if cache := r.helper.Cache(); cache != nil {
		cacheKey = cache.K("submission_artifact", "fanout", artifactID)

		var cached artifactFanout
		if r.helper.CacheAsideGet(ctx, cacheKey, &cached) {
			return cached.CourseID, cached.MemberIDs
		}
	}

	db, err := r.connection.GetDB()
	if err != nil {
		return "", nil
	}

	rows, err := db.QueryContext(ctx, `SELECT sg.course_id, sg.id, sgm.course_member_id
		FROM submission_artifact sa
		JOIN submission_group sg ON sg.id = sa.submission_group_id
		LEFT JOIN submission_group_member sgm ON sgm.submission_group_id = sg.id
		WHERE sa.id = $1`, artifactID)
	if err != nil {
		pkg.NewLoggerFromContext(ctx).Warnf("failed to resolve artifact fan-out for %s: %v", artifactID, err)
		return "", nil
	}
	defer rows.Close()

	var (
		fanout  artifactFanout
		groupID string
	)

	for rows.Next() {
		var memberID sql.NullString
		if err := rows.Scan(&fanout.CourseID, &groupID, &memberID); err != nil {
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

func (r *SubmissionGradePostgreSQLRepository) scan(row interface{ Scan(...any) error }) (*mmodel.SubmissionGrade, error) {
	record := &SubmissionGradePostgreSQLModel{}

	if err := row.Scan(&record.ID, &record.ArtifactID, &record.GradedByCourseMemberID,
		&record.Grade, &record.Status, &record.Feedback,
		&record.GradedAt, &record.CreatedAt); err != nil {
		return nil, err
	}

	return record.ToEntity(), nil
}

// Create appends a new grade and fans the invalidation out across the full
// cascade: artifact, group views, and every member's grading dashboard.
func (r *SubmissionGradePostgreSQLRepository) Create(ctx context.Context, grade *mmodel.SubmissionGrade) (*mmodel.SubmissionGrade, error) {
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.create_submission_grade")
	defer span.End()

	if grade.Grade < 0 || grade.Grade > 1 {
		return nil, pkg.ValidateBusinessError(constant.ErrInvalidGradeRange, reflect.TypeOf(mmodel.SubmissionGrade{}).Name())
	}

	db, err := r.connection.GetDB()
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get database connection", err)

		return nil, err
	}

	record := &SubmissionGradePostgreSQLModel{}
	record.FromEntity(grade)

	ctx, spanExec := tracer.Start(ctx, "postgres.create.exec")

	_, err = db.ExecContext(ctx, `INSERT INTO submission_grade VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		record.ID, record.ArtifactID, record.GradedByCourseMemberID,
		record.Grade, record.Status, record.Feedback,
		record.GradedAt, record.CreatedAt)
	if err != nil {
		mopentelemetry.HandleSpanError(&spanExec, "Failed to execute query", err)

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			return nil, services.ValidatePGError(pgErr, reflect.TypeOf(mmodel.SubmissionGrade{}).Name())
		}

		return nil, err
	}

	spanExec.End()

	created := record.ToEntity()
	r.helper.AfterCreate(ctx, created.ID, created)

	return created, nil
}

// Find retrieves a submission grade entity through the cache using the provided ID.
func (r *SubmissionGradePostgreSQLRepository) Find(ctx context.Context, id string) (*mmodel.SubmissionGrade, error) {
	return r.helper.CachedGet(ctx, id, func(ctx context.Context) (*mmodel.SubmissionGrade, error) {
		return r.findOne(ctx, `SELECT `+gradeColumns+` FROM submission_grade WHERE id = $1`, id)
	})
}

func (r *SubmissionGradePostgreSQLRepository) findOne(ctx context.Context, query string, args ...any) (*mmodel.SubmissionGrade, error) {
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.find_submission_grade")
	defer span.End()

	db, err := r.connection.GetDB()
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get database connection", err)

		return nil, err
	}

	grade, err := r.scan(db.QueryRowContext(ctx, query, args...))
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to scan row", err)

		if errors.Is(err, sql.ErrNoRows) {
			return nil, pkg.ValidateBusinessError(constant.ErrEntityNotFound, reflect.TypeOf(mmodel.SubmissionGrade{}).Name())
		}

		return nil, err
	}

	return grade, nil
}

func (r *SubmissionGradePostgreSQLRepository) query(ctx context.Context, query string, args ...any) ([]*mmodel.SubmissionGrade, error) {
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.find_all_submission_grades")
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

	var grades []*mmodel.SubmissionGrade

	for rows.Next() {
		grade, err := r.scan(rows)
		if err != nil {
			mopentelemetry.HandleSpanError(&span, "Failed to scan row", err)

			return nil, err
		}

		grades = append(grades, grade)
	}

	if err := rows.Err(); err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get rows", err)

		return nil, err
	}

	return grades, nil
}

// FindByArtifact retrieves all grades for an artifact newest first.
func (r *SubmissionGradePostgreSQLRepository) FindByArtifact(ctx context.Context, artifactID string) ([]*mmodel.SubmissionGrade, error) {
	filters := map[string]any{"artifact_id": artifactID}

	return r.helper.CachedList(ctx, filters, func(ctx context.Context) ([]*mmodel.SubmissionGrade, error) {
		return r.query(ctx, `SELECT `+gradeColumns+` FROM submission_grade
			WHERE artifact_id = $1 ORDER BY graded_at DESC`, artifactID)
	})
}

// FindLatestByArtifact retrieves the most recent grade for an artifact.
func (r *SubmissionGradePostgreSQLRepository) FindLatestByArtifact(ctx context.Context, artifactID string) (*mmodel.SubmissionGrade, error) {
	return r.findOne(ctx, `SELECT `+gradeColumns+` FROM submission_grade
		WHERE artifact_id = $1 ORDER BY graded_at DESC LIMIT 1`, artifactID)
}

// FindByGrader retrieves all grades given by a grader newest first.
func (r *SubmissionGradePostgreSQLRepository) FindByGrader(ctx context.Context, graderID string) ([]*mmodel.SubmissionGrade, error) {
	filters := map[string]any{"graded_by_course_member_id": graderID}

	return r.helper.CachedList(ctx, filters, func(ctx context.Context) ([]*mmodel.SubmissionGrade, error) {
		return r.query(ctx, `SELECT `+gradeColumns+` FROM submission_grade
			WHERE graded_by_course_member_id = $1 ORDER BY graded_at DESC`, graderID)
	})
}

// FindByStatus retrieves all grades with a specific review status.
func (r *SubmissionGradePostgreSQLRepository) FindByStatus(ctx context.Context, status mmodel.GradingStatus) ([]*mmodel.SubmissionGrade, error) {
	filters := map[string]any{"status": int(status)}

	return r.helper.CachedList(ctx, filters, func(ctx context.Context) ([]*mmodel.SubmissionGrade, error) {
		return r.query(ctx, `SELECT `+gradeColumns+` FROM submission_grade
			WHERE status = $1 ORDER BY graded_at DESC`, int(status))
	})
}

// AverageGradeForArtifact computes the mean grade over all grades of an
// artifact; nil when no grades exist.
func (r *SubmissionGradePostgreSQLRepository) AverageGradeForArtifact(ctx context.Context, artifactID string) (*float64, error) {
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.average_grade_for_artifact")
	defer span.End()

	db, err := r.connection.GetDB()
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get database connection", err)

		return nil, err
	}

	var avg sql.NullFloat64

	row := db.QueryRowContext(ctx, `SELECT AVG(grade) FROM submission_grade WHERE artifact_id = $1`, artifactID)
	if err := row.Scan(&avg); err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to scan row", err)

		return nil, err
	}

	if !avg.Valid {
		return nil, nil
	}

	return &avg.Float64, nil
}
