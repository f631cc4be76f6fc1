package bootstrap

import (
	httpin "github.com/computor-org/computor/internal/adapters/http/in"
	"github.com/computor-org/computor/internal/adapters/postgres/apitoken"
	"github.com/computor-org/computor/internal/adapters/postgres/course"
	"github.com/computor-org/computor/internal/adapters/postgres/coursecontent"
	"github.com/computor-org/computor/internal/adapters/postgres/coursefamily"
	"github.com/computor-org/computor/internal/adapters/postgres/coursemember"
	"github.com/computor-org/computor/internal/adapters/postgres/deployment"
	"github.com/computor-org/computor/internal/adapters/postgres/exampleversion"
	"github.com/computor-org/computor/internal/adapters/postgres/organization"
	"github.com/computor-org/computor/internal/adapters/postgres/submissionartifact"
	"github.com/computor-org/computor/internal/adapters/postgres/submissiongrade"
	"github.com/computor-org/computor/internal/adapters/postgres/submissiongroup"
	"github.com/computor-org/computor/internal/adapters/rabbitmq"
	"github.com/computor-org/computor/internal/services/views"
	"github.com/computor-org/computor/pkg"
	"github.com/computor-org/computor/pkg/mcache"
	"github.com/computor-org/computor/pkg/mlog"
	"github.com/computor-org/computor/pkg/mpostgres"
	"github.com/computor-org/computor/pkg/mredis"

	msgrepo "github.com/computor-org/computor/internal/adapters/postgres/message"
)

// Service bundles every wired component of the process.
type Service struct {
	*Server
	Logger   mlog.Logger
	Cache    *mcache.Cache
	Repos    *Repositories
	Producer rabbitmq.ProducerRepository
}

// Repositories groups the entity repositories.
type Repositories struct {
	Organization       organization.Repository
	CourseFamily       coursefamily.Repository
	Course             course.Repository
	CourseContent      coursecontent.Repository
	Deployment         deployment.Repository
	ExampleVersion     exampleversion.Repository
	CourseMember       coursemember.Repository
	SubmissionGroup    submissiongroup.Repository
	SubmissionArtifact submissionartifact.Repository
	SubmissionGrade    submissiongrade.Repository
	Message            msgrepo.Repository
	ApiToken           apitoken.Repository
}

// InitServers wires config → connections → cache → repositories → views →
// routes and returns the runnable service.
func InitServers(cfg *Config, logger mlog.Logger) *Service {
	postgresConnection := &mpostgres.PostgresConnection{
		ConnectionStringPrimary: cfg.PrimaryDBConnection,
		ConnectionStringReplica: cfg.ReplicaDBConnection,
		PrimaryDBName:           cfg.PrimaryDBName,
		ReplicaDBName:           cfg.ReplicaDBName,
		MigrationsPath:          cfg.MigrationsPath,
		MaxOpenConns:            cfg.MaxOpenConnections,
		Logger:                  logger,
	}

	redisConnection := &mredis.RedisConnection{
		ConnectionStringSource: cfg.RedisConnection,
		Logger:                 logger,
	}

	cache := mcache.New(redisConnection, cfg.CachePrefix, cfg.CacheDefaultTTL)

	rabbitConnection := &rabbitmq.RabbitMQConnection{
		ConnectionStringSource: cfg.RabbitConnection,
	}

	producer := rabbitmq.NewProducerRabbitMQ(rabbitConnection, cfg.RabbitExchange)

	permissions := mcache.NewPermissionInvalidator(cache)

	deploymentRepo := deployment.NewDeploymentPostgreSQLRepository(postgresConnection, cache)

	repos := &Repositories{
		Organization:       organization.NewOrganizationPostgreSQLRepository(postgresConnection, cache),
		CourseFamily:       coursefamily.NewCourseFamilyPostgreSQLRepository(postgresConnection, cache),
		Course:             course.NewCoursePostgreSQLRepository(postgresConnection, cache),
		CourseContent:      coursecontent.NewCourseContentPostgreSQLRepository(postgresConnection, cache),
		Deployment:         deploymentRepo,
		ExampleVersion:     exampleversion.NewExampleVersionPostgreSQLRepository(postgresConnection, cache, deploymentRepo),
		CourseMember:       coursemember.NewCourseMemberPostgreSQLRepository(postgresConnection, cache, permissions),
		SubmissionGroup:    submissiongroup.NewSubmissionGroupPostgreSQLRepository(postgresConnection, cache),
		SubmissionArtifact: submissionartifact.NewSubmissionArtifactPostgreSQLRepository(postgresConnection, cache),
		SubmissionGrade:    submissiongrade.NewSubmissionGradePostgreSQLRepository(postgresConnection, cache),
		Message:            msgrepo.NewMessagePostgreSQLRepository(postgresConnection, cache),
		ApiToken:           apitoken.NewApiTokenPostgreSQLRepository(postgresConnection, cache),
	}

	handler := &httpin.ViewsHandler{
		Student:  views.NewStudentViewRepository(cache, postgresConnection),
		Tutor:    views.NewTutorViewRepository(cache, postgresConnection),
		Lecturer: views.NewLecturerViewRepository(cache, postgresConnection),
		Gradings: views.NewGradingsViewRepository(cache, postgresConnection),
	}

	app := httpin.NewRouter(handler)

	server := NewServer(cfg, app, logger)

	return &Service{
		Server:   server,
		Logger:   logger,
		Cache:    cache,
		Repos:    repos,
		Producer: producer,
	}
}

// Run starts the service through the launcher.
func (s *Service) Run() {
	launcher := pkg.NewLauncher(
		pkg.WithLogger(s.Logger),
		pkg.RunApp("service", s.Server),
	)

	launcher.Run()
}
