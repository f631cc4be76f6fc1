package main

import (
	"github.com/computor-org/computor/internal/bootstrap"
	"github.com/computor-org/computor/pkg/mzap"
)

func main() {
	logger := mzap.InitializeLogger()

	cfg := bootstrap.NewConfig()

	service := bootstrap.InitServers(cfg, logger)

	service.Run()
}
