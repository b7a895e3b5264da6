package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kelseyhightower/envconfig"

	"github.com/captainzonks/GeneGnome/models"
	"github.com/captainzonks/GeneGnome/refpanel"
	"github.com/captainzonks/GeneGnome/repositories/postgres"
	"github.com/captainzonks/GeneGnome/services"
	"github.com/captainzonks/GeneGnome/services/sweeper"
	"github.com/captainzonks/GeneGnome/utils"
)

func main() {
	// Gather environment variables
	var cfg models.Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		fmt.Println(err)
		os.Exit(2)
	}

	fmt.Printf("Using : \n"+

		"\tDebug : %t \n\n"+

		"\tData Root : %s \n"+
		"\tReference Panel : %s \n"+
		"\tRedis Address : %s \n\n"+

		"\tWorker Count : %d\n"+
		"\tHeartbeat Timeout : %d seconds\n"+
		"\tStuck Job Threshold : %d minutes\n",

		cfg.Debug,
		cfg.Api.DataRoot,
		cfg.ReferencePanel.Path,
		cfg.Redis.Address,
		cfg.Worker.Count,
		cfg.Worker.HeartbeatTimeoutSeconds,
		cfg.Worker.StuckJobThresholdMins)
	// --

	// Service Connections:
	// -- Postgres (job store)
	db, err := utils.CreatePostgresConnection(cfg.Database.Dsn)
	if err != nil {
		fmt.Println(err)
		os.Exit(4)
	}
	if err = postgres.EnsureSchema(db); err != nil {
		fmt.Println(err)
		os.Exit(4)
	}
	// -- Redis (queue + progress channels)
	redisClient, err := utils.CreateRedisConnection(cfg.Redis.Address, cfg.Redis.Password)
	if err != nil {
		fmt.Println(err)
		os.Exit(4)
	}

	// -- Reference panel (read-only, shared by every worker)
	panel, err := refpanel.Open(cfg.ReferencePanel.Path)
	if err != nil {
		fmt.Println(err)
		os.Exit(4)
	}
	if err = panel.Validate(); err != nil {
		fmt.Printf("Reference panel failed validation: %v\n", err)
		os.Exit(3)
	}

	ps := services.NewProcessingService(&cfg, db, redisClient, panel)

	sw := sweeper.NewSweeperService(&cfg, db)
	defer sw.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err = ps.Run(ctx); err != nil {
		fmt.Printf("Worker pool exited: %v\n", err)
		os.Exit(1)
	}
}
