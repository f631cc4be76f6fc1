package deployment

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

const deploymentColumns = `id, course_content_id, example_version_id, example_identifier, deployment_status, workflow_id, message, deployed_at, created_at, updated_at`

// DeploymentPostgreSQLRepository is a Postgresql-specific implementation of the Repository.
type DeploymentPostgreSQLRepository struct {
	connection *mpostgres.PostgresConnection
	tableName  string
	helper     *cachedrepo.Helper[mmodel.CourseContentDeployment]
}

// NewDeploymentPostgreSQLRepository returns a new instance of DeploymentPostgreSQLRepository
// using the given postgres connection.
func NewDeploymentPostgreSQLRepository(pc *mpostgres.PostgresConnection, cache *mcache.Cache) *DeploymentPostgreSQLRepository {
	r := &DeploymentPostgreSQLRepository{
		connection: pc,
		tableName:  "course_content_deployment",
	}

	r.helper = cachedrepo.NewHelper[mmodel.CourseContentDeployment](cache, r)

	return r
}

// EntityType implements cachedrepo.Cacheable.
func (r *DeploymentPostgreSQLRepository) EntityType() string { return "course_content_deployment" }

// TTL implements cachedrepo.Cacheable.
func (r *DeploymentPostgreSQLRepository) TTL() time.Duration { return 5 * time.Minute }

// EntityTags implements cachedrepo.Cacheable. Student and tutor content
// listings embed deployment status, so the content tag is the critical one.
func (r *DeploymentPostgreSQLRepository) EntityTags(_ context.Context, d *mmodel.CourseContentDeployment) []string {
	tags := []string{
		"course_content_deployment:" + d.ID,
		"course_content_deployment:list",
	}

	if d.CourseContentID != "" {
		tags = append(tags,
			"course_content_deployment:content:"+d.CourseContentID,
			"course_content:"+d.CourseContentID,
		)
	}

	if d.ExampleVersionID != nil {
		tags = append(tags,
			"course_content_deployment:version:"+*d.ExampleVersionID,
			"example_version:"+*d.ExampleVersionID,
		)
	}

	if d.DeploymentStatus != "" {
		tags = append(tags, "course_content_deployment:status:"+d.DeploymentStatus)
	}

	if !d.ExampleIdentifier.IsZero() {
		tags = append(tags, "course_content_deployment:example_identifier:"+d.ExampleIdentifier.String())
	}

	if d.WorkflowID != nil {
		tags = append(tags, "course_content_deployment:workflow:"+*d.WorkflowID)
	}

	return tags
}

// ListTags implements cachedrepo.Cacheable.
func (r *DeploymentPostgreSQLRepository) ListTags(filters map[string]any) []string {
	tags := []string{"course_content_deployment:list"}

	if contentID, ok := filters["course_content_id"].(string); ok && contentID != "" {
		tags = append(tags,
			"course_content_deployment:content:"+contentID,
			"course_content:"+contentID,
		)
	}

	if status, ok := filters["deployment_status"].(string); ok && status != "" {
		tags = append(tags, "course_content_deployment:status:"+status)
	}

	if identifier, ok := filters["example_identifier"].(string); ok && identifier != "" {
		tags = append(tags, "course_content_deployment:example_identifier:"+identifier)
	}

	return tags
}

func (r *DeploymentPostgreSQLRepository) scan(row interface{ Scan(...any) error }) (*mmodel.CourseContentDeployment, error) {
	record := &DeploymentPostgreSQLModel{}

	if err := row.Scan(&record.ID, &record.CourseContentID, &record.ExampleVersionID, &record.ExampleIdentifier,
		&record.DeploymentStatus, &record.WorkflowID, &record.Message, &record.DeployedAt,
		&record.CreatedAt, &record.UpdatedAt); err != nil {
		return nil, err
	}

	return record.ToEntity(), nil
}

// Create a new deployment entity into Postgresql and returns it.
func (r *DeploymentPostgreSQLRepository) Create(ctx context.Context, d *mmodel.CourseContentDeployment) (*mmodel.CourseContentDeployment, error) {
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.create_deployment")
	defer span.End()

	db, err := r.connection.GetDB()
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get database connection", err)

		return nil, err
	}

	record := &DeploymentPostgreSQLModel{}
	record.FromEntity(d)

	_, err = db.ExecContext(ctx, `INSERT INTO course_content_deployment VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		record.ID, record.CourseContentID, record.ExampleVersionID, record.ExampleIdentifier,
		record.DeploymentStatus, record.WorkflowID, record.Message, record.DeployedAt,
		record.CreatedAt, record.UpdatedAt)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to execute query", err)

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			return nil, services.ValidatePGError(pgErr, reflect.TypeOf(mmodel.CourseContentDeployment{}).Name())
		}

		return nil, err
	}

	created := record.ToEntity()
	r.helper.AfterCreate(ctx, created.ID, created)

	return created, nil
}

// Find retrieves a deployment entity through the cache using the provided ID.
func (r *DeploymentPostgreSQLRepository) Find(ctx context.Context, id string) (*mmodel.CourseContentDeployment, error) {
	return r.helper.CachedGet(ctx, id, func(ctx context.Context) (*mmodel.CourseContentDeployment, error) {
		return r.findOne(ctx, `SELECT `+deploymentColumns+` FROM course_content_deployment WHERE id = $1`, id)
	})
}

// FindByContent retrieves the deployment bound to a course content. One row
// per content is expected.
func (r *DeploymentPostgreSQLRepository) FindByContent(ctx context.Context, courseContentID string) (*mmodel.CourseContentDeployment, error) {
	return r.findOne(ctx, `SELECT `+deploymentColumns+` FROM course_content_deployment
		WHERE course_content_id = $1 ORDER BY created_at DESC LIMIT 1`, courseContentID)
}

func (r *DeploymentPostgreSQLRepository) findOne(ctx context.Context, query string, args ...any) (*mmodel.CourseContentDeployment, error) {
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.find_deployment")
	defer span.End()

	db, err := r.connection.GetDB()
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get database connection", err)

		return nil, err
	}

	d, err := r.scan(db.QueryRowContext(ctx, query, args...))
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to scan row", err)

		if errors.Is(err, sql.ErrNoRows) {
			return nil, pkg.ValidateBusinessError(constant.ErrEntityNotFound, reflect.TypeOf(mmodel.CourseContentDeployment{}).Name())
		}

		return nil, err
	}

	return d, nil
}

// FindByExampleIdentifier retrieves every deployment referencing the given
// example identifier by labeled-tree equality. This is the lookup the
// example-version cascade relies on.
func (r *DeploymentPostgreSQLRepository) FindByExampleIdentifier(ctx context.Context, identifier ltree.Path) ([]*mmodel.CourseContentDeployment, error) {
	return r.query(ctx, `SELECT `+deploymentColumns+` FROM course_content_deployment
		WHERE example_identifier = $1 ORDER BY created_at`, identifier)
}

// FindByStatus retrieves every deployment in the given lifecycle state.
func (r *DeploymentPostgreSQLRepository) FindByStatus(ctx context.Context, status string) ([]*mmodel.CourseContentDeployment, error) {
	filters := map[string]any{"deployment_status": status}

	return r.helper.CachedList(ctx, filters, func(ctx context.Context) ([]*mmodel.CourseContentDeployment, error) {
		return r.query(ctx, `SELECT `+deploymentColumns+` FROM course_content_deployment
			WHERE deployment_status = $1 ORDER BY created_at`, status)
	})
}

func (r *DeploymentPostgreSQLRepository) query(ctx context.Context, query string, args ...any) ([]*mmodel.CourseContentDeployment, error) {
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.find_all_deployments")
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

	var deployments []*mmodel.CourseContentDeployment

	for rows.Next() {
		d, err := r.scan(rows)
		if err != nil {
			mopentelemetry.HandleSpanError(&span, "Failed to scan row", err)

			return nil, err
		}

		deployments = append(deployments, d)
	}

	if err := rows.Err(); err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get rows", err)

		return nil, err
	}

	return deployments, nil
}

// Update a deployment entity into Postgresql and returns the updated entity.
func (r *DeploymentPostgreSQLRepository) Update(ctx context.Context, id string, d *mmodel.CourseContentDeployment) (*mmodel.CourseContentDeployment, error) {
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.update_deployment")
	defer span.End()

	old, err := r.findOne(ctx, `SELECT `+deploymentColumns+` FROM course_content_deployment WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}

	db, err := r.connection.GetDB()
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get database connection", err)

		return nil, err
	}

	result, err := db.ExecContext(ctx, `UPDATE course_content_deployment
		SET example_version_id = $1, example_identifier = $2, deployment_status = $3,
		    workflow_id = $4, message = $5, deployed_at = $6, updated_at = $7
		WHERE id = $8`,
		d.ExampleVersionID, d.ExampleIdentifier, d.DeploymentStatus,
		d.WorkflowID, d.Message, d.DeployedAt, time.Now(), id)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to execute query", err)

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			return nil, services.ValidatePGError(pgErr, reflect.TypeOf(mmodel.CourseContentDeployment{}).Name())
		}

		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get rows affected", err)

		return nil, err
	}

	if rowsAffected == 0 {
		return nil, pkg.ValidateBusinessError(constant.ErrEntityNotFound, reflect.TypeOf(mmodel.CourseContentDeployment{}).Name())
	}

	updated, err := r.findOne(ctx, `SELECT `+deploymentColumns+` FROM course_content_deployment WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}

	r.helper.AfterUpdate(ctx, id, old, updated)

	return updated, nil
}

// UpdateStatus advances the deployment lifecycle, stamping deployed_at on the
// terminal deployed state.
func (r *DeploymentPostgreSQLRepository) UpdateStatus(ctx context.Context, id, status, message string) (*mmodel.CourseContentDeployment, error) {
	d, err := r.findOne(ctx, `SELECT `+deploymentColumns+` FROM course_content_deployment WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}

	d.DeploymentStatus = status
	d.Message = message

	if status == mmodel.DeploymentStatusDeployed {
		now := time.Now()
		d.DeployedAt = &now
	}

	return r.Update(ctx, id, d)
}

// Delete removes a deployment entity using the provided ID.
func (r *DeploymentPostgreSQLRepository) Delete(ctx context.Context, id string) error {
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.delete_deployment")
	defer span.End()

	entity, err := r.findOne(ctx, `SELECT `+deploymentColumns+` FROM course_content_deployment WHERE id = $1`, id)
	if err != nil {
		return err
	}

	db, err := r.connection.GetDB()
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get database connection", err)

		return err
	}

	result, err := db.ExecContext(ctx, `DELETE FROM course_content_deployment WHERE id = $1`, id)
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
		return pkg.ValidateBusinessError(constant.ErrEntityNotFound, reflect.TypeOf(mmodel.CourseContentDeployment{}).Name())
	}

	r.helper.AfterDelete(ctx, id, entity)

	return nil
}
