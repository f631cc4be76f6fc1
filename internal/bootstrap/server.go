package bootstrap

import (
	"github.com/gofiber/fiber/v2"

	"github.com/computor-org/computor/pkg"
	"github.com/computor-org/computor/pkg/mlog"
)

// Server represents the http server for the service.
type Server struct {
	app           *fiber.App
	serverAddress string
	logger        mlog.Logger
}

// ServerAddress returns the server address.
func (s *Server) ServerAddress() string {
	return s.serverAddress
}

// NewServer creates an instance of Server.
func NewServer(cfg *Config, app *fiber.App, logger mlog.Logger) *Server {
	return &Server{
		app:           app,
		serverAddress: cfg.ServerAddress,
		logger:        logger,
	}
}

// Run fiber server.
func (s *Server) Run(l *pkg.Launcher) error {
	defer func() {
		if err := s.logger.Sync(); err != nil {
			s.logger.Fatalf("Failed to sync logger: %s", err)
		}
	}()

	err := s.app.Listen(s.ServerAddress())
	if err != nil {
		return pkg.InternalServerError{
			Message: err.Error(),
		}
	}

	return nil
}
