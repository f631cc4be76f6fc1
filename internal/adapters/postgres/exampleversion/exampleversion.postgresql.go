package exampleversion

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

const exampleVersionColumns = `id, example_id, version_number, version_tag, storage_path, created_at`

// ExampleVersionPostgreSQLRepository is a Postgresql-specific implementation of the Repository.
type ExampleVersionPostgreSQLRepository struct {
	connection  *mpostgres.PostgresConnection
	tableName   string
	helper      *cachedrepo.Helper[mmodel.ExampleVersion]
	deployments DeploymentLookup
}

// NewExampleVersionPostgreSQLRepository returns a new instance of
// ExampleVersionPostgreSQLRepository using the given postgres connection.
// deployments drives the create-time cascade to dependent course contents.
func NewExampleVersionPostgreSQLRepository(pc *mpostgres.PostgresConnection, cache *mcache.Cache, deployments DeploymentLookup) *ExampleVersionPostgreSQLRepository {
	r := &ExampleVersionPostgreSQLRepository{
		connection:  pc,
		tableName:   "example_version",
		deployments: deployments,
	}

	r.helper = cachedrepo.NewHelper[mmodel.ExampleVersion](cache, r)

	return r
}

// EntityType implements cachedrepo.Cacheable.
func (r *ExampleVersionPostgreSQLRepository) EntityType() string { return "example_version" }

// TTL implements cachedrepo.Cacheable. Versions are immutable once created.
func (r *ExampleVersionPostgreSQLRepository) TTL() time.Duration { return time.Hour }

// EntityTags implements cachedrepo.Cacheable.
func (r *ExampleVersionPostgreSQLRepository) EntityTags(_ context.Context, version *mmodel.ExampleVersion) []string {
	tags := []string{
		"example_version:" + version.ID,
		"example_version:list",
	}

	if version.ExampleID != "" {
		tags = append(tags,
			"example_version:example:"+version.ExampleID,
			"example:"+version.ExampleID,
			"course_content_deployment:example_version:"+version.ID,
		)
	}

	if version.VersionTag != "" {
		tags = append(tags, "example_version:tag:"+version.VersionTag)
	}

	return tags
}

// ListTags implements cachedrepo.Cacheable.
func (r *ExampleVersionPostgreSQLRepository) ListTags(filters map[string]any) []string {
	tags := []string{"example_version:list"}

	if exampleID, ok := filters["example_id"].(string); ok && exampleID != "" {
		tags = append(tags,
			"example_version:example:"+exampleID,
			"example:"+exampleID,
		)
	}

	if versionTag, ok := filters["version_tag"].(string); ok && versionTag != "" {
		tags = append(tags, "example_version:tag:"+versionTag)
	}

	return tags
}

func (r *ExampleVersionPostgreSQLRepository) scan(row interface{ Scan(...any) error }) (*mmodel.ExampleVersion, error) {
	record := &ExampleVersionPostgreSQLModel{}

	if err := row.Scan(&record.ID, &record.ExampleID, &record.VersionNumber, &record.VersionTag,
		&record.StoragePath, &record.CreatedAt); err != nil {
		return nil, err
	}

	return record.ToEntity(), nil
}

// Create inserts a new immutable version and cascades cache invalidation to
// every deployment referencing the parent example by identifier, so
// student/tutor views pick up the new version on their next read.
func (r *ExampleVersionPostgreSQLRepository) Create(ctx context.Context, version *mmodel.ExampleVersion) (*mmodel.ExampleVersion, error) {
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.create_example_version")
	defer span.End()

	db, err := r.connection.GetDB()
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get database connection", err)

		return nil, err
	}

	record := &ExampleVersionPostgreSQLModel{}
	record.FromEntity(version)

	_, err = db.ExecContext(ctx, `INSERT INTO example_version VALUES ($1, $2, $3, $4, $5, $6)`,
		record.ID, record.ExampleID, record.VersionNumber, record.VersionTag,
		record.StoragePath, record.CreatedAt)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to execute query", err)

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			return nil, services.ValidatePGError(pgErr, reflect.TypeOf(mmodel.ExampleVersion{}).Name())
		}

		return nil, err
	}

	created := record.ToEntity()
	r.helper.AfterCreate(ctx, created.ID, created)

	r.cascadeToDeployments(ctx, created)

	return created, nil
}

// cascadeToDeployments resolves the parent example's identifier and
// invalidates the course_content tag of every deployment bound to it. This is
// the one cascade that crosses from an immutable-entity write to a mutable
// downstream projection.
func (r *ExampleVersionPostgreSQLRepository) cascadeToDeployments(ctx context.Context, version *mmodel.ExampleVersion) {
	logger := pkg.NewLoggerFromContext(ctx)

	if !r.helper.Enabled() || r.deployments == nil || version.ExampleID == "" {
		return
	}

	identifier, err := r.findExampleIdentifier(ctx, version.ExampleID)
	if err != nil || identifier.IsZero() {
		return
	}

	deployments, err := r.deployments.FindByExampleIdentifier(ctx, identifier)
	if err != nil {
		logger.Warnf("example version cascade lookup failed for %s: %v", identifier, err)
		return
	}

	var tags []string

	for _, d := range deployments {
		if d.CourseContentID != "" {
			tags = append(tags, "course_content:"+d.CourseContentID)
		}
	}

	if len(tags) > 0 {
		r.helper.Invalidate(ctx, tags...)
		logger.Infof("invalidated %d course_content caches after creating example version %s for example %s",
			len(tags), version.ID, identifier)
	}
}

func (r *ExampleVersionPostgreSQLRepository) findExampleIdentifier(ctx context.Context, exampleID string) (ltree.Path, error) {
	db, err := r.connection.GetDB()
	if err != nil {
		return ltree.Path{}, err
	}

	var identifier ltree.Path

	row := db.QueryRowContext(ctx, `SELECT identifier FROM example WHERE id = $1`, exampleID)
	if err := row.Scan(&identifier); err != nil {
		return ltree.Path{}, err
	}

	return identifier, nil
}

// Find retrieves an example version through the cache using the provided ID.
func (r *ExampleVersionPostgreSQLRepository) Find(ctx context.Context, id string) (*mmodel.ExampleVersion, error) {
	return r.helper.CachedGet(ctx, id, func(ctx context.Context) (*mmodel.ExampleVersion, error) {
		return r.findOne(ctx, `SELECT `+exampleVersionColumns+` FROM example_version WHERE id = $1`, id)
	})
}

func (r *ExampleVersionPostgreSQLRepository) findOne(ctx context.Context, query string, args ...any) (*mmodel.ExampleVersion, error) {
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.find_example_version")
	defer span.End()

	db, err := r.connection.GetDB()
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get database connection", err)

		return nil, err
	}

	version, err := r.scan(db.QueryRowContext(ctx, query, args...))
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to scan row", err)

		if errors.Is(err, sql.ErrNoRows) {
			return nil, pkg.ValidateBusinessError(constant.ErrEntityNotFound, reflect.TypeOf(mmodel.ExampleVersion{}).Name())
		}

		return nil, err
	}

	return version, nil
}

// FindByExample retrieves all versions of an example ordered newest first.
func (r *ExampleVersionPostgreSQLRepository) FindByExample(ctx context.Context, exampleID string) ([]*mmodel.ExampleVersion, error) {
	filters := map[string]any{"example_id": exampleID}

	return r.helper.CachedList(ctx, filters, func(ctx context.Context) ([]*mmodel.ExampleVersion, error) {
		tracer := pkg.NewTracerFromContext(ctx)

		ctx, span := tracer.Start(ctx, "postgres.find_example_versions")
		defer span.End()

		db, err := r.connection.GetDB()
		if err != nil {
			mopentelemetry.HandleSpanError(&span, "Failed to get database connection", err)

			return nil, err
		}

		rows, err := db.QueryContext(ctx, `SELECT `+exampleVersionColumns+` FROM example_version
			WHERE example_id = $1 ORDER BY version_number DESC`, exampleID)
		if err != nil {
			mopentelemetry.HandleSpanError(&span, "Failed to query database", err)

			return nil, err
		}
		defer rows.Close()

		var versions []*mmodel.ExampleVersion

		for rows.Next() {
			version, err := r.scan(rows)
			if err != nil {
				mopentelemetry.HandleSpanError(&span, "Failed to scan row", err)

				return nil, err
			}

			versions = append(versions, version)
		}

		if err := rows.Err(); err != nil {
			mopentelemetry.HandleSpanError(&span, "Failed to get rows", err)

			return nil, err
		}

		return versions, nil
	})
}

// FindLatestVersion retrieves the highest-numbered version of an example.
func (r *ExampleVersionPostgreSQLRepository) FindLatestVersion(ctx context.Context, exampleID string) (*mmodel.ExampleVersion, error) {
	return r.findOne(ctx, `SELECT `+exampleVersionColumns+` FROM example_version
		WHERE example_id = $1 ORDER BY version_number DESC LIMIT 1`, exampleID)
}

// FindByVersionTag retrieves a version by its tag.
func (r *ExampleVersionPostgreSQLRepository) FindByVersionTag(ctx context.Context, exampleID, versionTag string) (*mmodel.ExampleVersion, error) {
	return r.findOne(ctx, `SELECT `+exampleVersionColumns+` FROM example_version
		WHERE example_id = $1 AND version_tag = $2`, exampleID, versionTag)
}

// NextVersionNumber returns the next sequential version number (1 if none exist).
func (r *ExampleVersionPostgreSQLRepository) NextVersionNumber(ctx context.Context, exampleID string) (int, error) {
	latest, err := r.FindLatestVersion(ctx, exampleID)
	if err != nil {
		if pkg.IsNotFound(err) {
			return 1, nil
		}

		return 0, err
	}

	return latest.VersionNumber + 1, nil
}
