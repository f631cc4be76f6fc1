package message

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

const messageColumns = `id, author_id, target_user_id, submission_group_id, course_content_id, course_id, title, content, archived_at, created_at, updated_at`

// MessagePostgreSQLRepository is a Postgresql-specific implementation of the Repository.
type MessagePostgreSQLRepository struct {
	connection *mpostgres.PostgresConnection
	tableName  string
	helper     *cachedrepo.Helper[mmodel.Message]
}

// NewMessagePostgreSQLRepository returns a new instance of MessagePostgreSQLRepository
// using the given postgres connection.
func NewMessagePostgreSQLRepository(pc *mpostgres.PostgresConnection, cache *mcache.Cache) *MessagePostgreSQLRepository {
	r := &MessagePostgreSQLRepository{
		connection: pc,
		tableName:  "message",
	}

	r.helper = cachedrepo.NewHelper[mmodel.Message](cache, r)

	return r
}

// EntityType implements cachedrepo.Cacheable.
func (r *MessagePostgreSQLRepository) EntityType() string { return "message" }

// TTL implements cachedrepo.Cacheable.
func (r *MessagePostgreSQLRepository) TTL() time.Duration { return 5 * time.Minute }

// EntityTags implements cachedrepo.Cacheable. Message writes reach the unread
// counters embedded in the content and group projections.
func (r *MessagePostgreSQLRepository) EntityTags(_ context.Context, msg *mmodel.Message) []string {
	tags := []string{
		"message:" + msg.ID,
		"message:list",
	}

	if msg.CourseContentID != nil {
		tags = append(tags,
			"course_content:"+*msg.CourseContentID,
			"message:content:"+*msg.CourseContentID,
		)
	}

	if msg.SubmissionGroupID != nil {
		tags = append(tags,
			"submission_group:"+*msg.SubmissionGroupID,
			"message:group:"+*msg.SubmissionGroupID,
		)
	}

	if msg.CourseID != nil {
		tags = append(tags,
			"course:"+*msg.CourseID,
			"student_view:"+*msg.CourseID,
			"tutor_view:"+*msg.CourseID,
		)
	}

	if msg.AuthorID != "" {
		tags = append(tags,
			"user:"+msg.AuthorID,
			"message:author:"+msg.AuthorID,
		)
	}

	if msg.TargetUserID != nil {
		tags = append(tags, "user:"+*msg.TargetUserID)
	}

	return tags
}

// ListTags implements cachedrepo.Cacheable.
func (r *MessagePostgreSQLRepository) ListTags(filters map[string]any) []string {
	tags := []string{"message:list"}

	if contentID, ok := filters["course_content_id"].(string); ok && contentID != "" {
		tags = append(tags, "message:content:"+contentID, "course_content:"+contentID)
	}

	if groupID, ok := filters["submission_group_id"].(string); ok && groupID != "" {
		tags = append(tags, "message:group:"+groupID, "submission_group:"+groupID)
	}

	if authorID, ok := filters["author_id"].(string); ok && authorID != "" {
		tags = append(tags, "message:author:"+authorID, "user:"+authorID)
	}

	return tags
}

func (r *MessagePostgreSQLRepository) scan(row interface{ Scan(...any) error }) (*mmodel.Message, error) {
	record := &MessagePostgreSQLModel{}

	if err := row.Scan(&record.ID, &record.AuthorID, &record.TargetUserID, &record.SubmissionGroupID,
		&record.CourseContentID, &record.CourseID, &record.Title, &record.Content,
		&record.ArchivedAt, &record.CreatedAt, &record.UpdatedAt); err != nil {
		return nil, err
	}

	return record.ToEntity(), nil
}

// Create a new message entity into Postgresql and returns it.
func (r *MessagePostgreSQLRepository) Create(ctx context.Context, msg *mmodel.Message) (*mmodel.Message, error) {
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.create_message")
	defer span.End()

	db, err := r.connection.GetDB()
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get database connection", err)

		return nil, err
	}

	record := &MessagePostgreSQLModel{}
	record.FromEntity(msg)

	_, err = db.ExecContext(ctx, `INSERT INTO message VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		record.ID, record.AuthorID, record.TargetUserID, record.SubmissionGroupID,
		record.CourseContentID, record.CourseID, record.Title, record.Content,
		record.ArchivedAt, record.CreatedAt, record.UpdatedAt)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to execute query", err)

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			return nil, services.ValidatePGError(pgErr, reflect.TypeOf(mmodel.Message{}).Name())
		}

		return nil, err
	}

	created := record.ToEntity()
	r.helper.AfterCreate(ctx, created.ID, created)

	return created, nil
}

// Find retrieves a message entity through the cache using the provided ID.
func (r *MessagePostgreSQLRepository) Find(ctx context.Context, id string) (*mmodel.Message, error) {
	return r.helper.CachedGet(ctx, id, func(ctx context.Context) (*mmodel.Message, error) {
		return r.findOne(ctx, `SELECT `+messageColumns+` FROM message WHERE id = $1 AND archived_at IS NULL`, id)
	})
}

func (r *MessagePostgreSQLRepository) findOne(ctx context.Context, query string, args ...any) (*mmodel.Message, error) {
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.find_message")
	defer span.End()

	db, err := r.connection.GetDB()
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get database connection", err)

		return nil, err
	}

	msg, err := r.scan(db.QueryRowContext(ctx, query, args...))
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to scan row", err)

		if errors.Is(err, sql.ErrNoRows) {
			return nil, pkg.ValidateBusinessError(constant.ErrEntityNotFound, reflect.TypeOf(mmodel.Message{}).Name())
		}

		return nil, err
	}

	return msg, nil
}

func (r *MessagePostgreSQLRepository) query(ctx context.Context, query string, args ...any) ([]*mmodel.Message, error) {
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.find_all_messages")
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

	var messages []*mmodel.Message

	for rows.Next() {
		msg, err := r.scan(rows)
		if err != nil {
			mopentelemetry.HandleSpanError(&span, "Failed to scan row", err)

			return nil, err
		}

		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get rows", err)

		return nil, err
	}

	return messages, nil
}

// FindByCourseContent retrieves the active messages of a course content.
func (r *MessagePostgreSQLRepository) FindByCourseContent(ctx context.Context, courseContentID string) ([]*mmodel.Message, error) {
	filters := map[string]any{"course_content_id": courseContentID}

	return r.helper.CachedList(ctx, filters, func(ctx context.Context) ([]*mmodel.Message, error) {
		return r.query(ctx, `SELECT `+messageColumns+` FROM message
			WHERE course_content_id = $1 AND archived_at IS NULL ORDER BY created_at DESC`, courseContentID)
	})
}

// FindBySubmissionGroup retrieves the active messages of a submission group.
func (r *MessagePostgreSQLRepository) FindBySubmissionGroup(ctx context.Context, submissionGroupID string) ([]*mmodel.Message, error) {
	filters := map[string]any{"submission_group_id": submissionGroupID}

	return r.helper.CachedList(ctx, filters, func(ctx context.Context) ([]*mmodel.Message, error) {
		return r.query(ctx, `SELECT `+messageColumns+` FROM message
			WHERE submission_group_id = $1 AND archived_at IS NULL ORDER BY created_at DESC`, submissionGroupID)
	})
}

// CountUnreadByContent counts content-level messages the reader has not seen,
// excluding their own, anti-joined against message_read.
func (r *MessagePostgreSQLRepository) CountUnreadByContent(ctx context.Context, readerUserID, courseContentID string) (int, error) {
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.count_unread_messages")
	defer span.End()

	db, err := r.connection.GetDB()
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get database connection", err)

		return 0, err
	}

	var count int

	row := db.QueryRowContext(ctx, `SELECT COUNT(m.id)
		FROM message m
		LEFT JOIN message_read mr ON mr.message_id = m.id AND mr.reader_user_id = $1
		WHERE m.course_content_id = $2
		  AND m.submission_group_id IS NULL
		  AND m.archived_at IS NULL
		  AND m.author_id != $1
		  AND mr.id IS NULL`, readerUserID, courseContentID)
	if err := row.Scan(&count); err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to scan row", err)

		return 0, err
	}

	return count, nil
}

// MarkRead inserts a message_read row; repeated reads are no-ops.
func (r *MessagePostgreSQLRepository) MarkRead(ctx context.Context, messageID, readerUserID string) error {
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.mark_message_read")
	defer span.End()

	msg, err := r.Find(ctx, messageID)
	if err != nil {
		return err
	}

	db, err := r.connection.GetDB()
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get database connection", err)

		return err
	}

	_, err = db.ExecContext(ctx, `INSERT INTO message_read (id, message_id, reader_user_id, read_at)
		VALUES ($1, $2, $3, $4) ON CONFLICT (message_id, reader_user_id) DO NOTHING`,
		pkg.GenerateUUIDv7().String(), messageID, readerUserID, time.Now())
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to execute query", err)

		return err
	}

	// A read changes the reader's unread counters, not anyone else's.
	tags := []string{"user:" + readerUserID}
	if msg.CourseContentID != nil {
		tags = append(tags, "course_content:"+*msg.CourseContentID)
	}

	if msg.SubmissionGroupID != nil {
		tags = append(tags, "submission_group:"+*msg.SubmissionGroupID)
	}

	r.helper.Invalidate(ctx, tags...)

	return nil
}

// Archive soft-deletes a message entity using the provided ID.
func (r *MessagePostgreSQLRepository) Archive(ctx context.Context, id string) error {
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.archive_message")
	defer span.End()

	entity, err := r.findOne(ctx, `SELECT `+messageColumns+` FROM message WHERE id = $1 AND archived_at IS NULL`, id)
	if err != nil {
		return err
	}

	db, err := r.connection.GetDB()
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get database connection", err)

		return err
	}

	result, err := db.ExecContext(ctx, `UPDATE message SET archived_at = now(), updated_at = now()
		WHERE id = $1 AND archived_at IS NULL`, id)
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
		return pkg.ValidateBusinessError(constant.ErrEntityNotFound, reflect.TypeOf(mmodel.Message{}).Name())
	}

	r.helper.AfterDelete(ctx, id, entity)

	return nil
}
