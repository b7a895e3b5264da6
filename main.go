package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/labstack/echo"
	"github.com/labstack/echo/middleware"

	"github.com/captainzonks/GeneGnome/contexts"
	ggm "github.com/captainzonks/GeneGnome/middleware"
	"github.com/captainzonks/GeneGnome/models"
	"github.com/captainzonks/GeneGnome/mvc"
	"github.com/captainzonks/GeneGnome/repositories/postgres"
	"github.com/captainzonks/GeneGnome/services"
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
		"\tMax Part Size : %d bytes\n"+
		"\tReference Panel : %s \n"+
		"\tRedis Address : %s \n\n"+

		"\tRetention Window : %d hours\n"+
		"\tToken Expiry : %d hours\n"+
		"\tMax Download Attempts : %d\n"+
		"\tDownload Rate Limit : %d/min\n\n"+

		"Running on Port : %s\n",

		cfg.Debug,
		cfg.Api.DataRoot,
		cfg.Api.MaxPartSize,
		cfg.ReferencePanel.Path,
		cfg.Redis.Address,
		cfg.Retention.DataWindowHours,
		cfg.Retention.TokenExpiryHours,
		cfg.Download.MaxAttempts,
		cfg.Download.RateLimitPerMinute,
		cfg.Api.Port)
	// --

	// Instantiate Server
	e := echo.New()

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

	// Service Singletons
	security := services.NewSecurityService(&cfg)
	uploads := services.NewUploadService(&cfg)

	// Configure Server
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{echo.GET, echo.POST, echo.DELETE},
	}))

	// -- Override handlers with "custom GeneGnome" context
	//		to be able to provide variables and global singletons
	e.Use(func(h echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			gc := &contexts.GeneGnomeContext{
				Context:         c,
				Config:          &cfg,
				Db:              db,
				Redis:           redisClient,
				SecurityService: security,
				UploadService:   uploads,
			}
			return h(gc)
		}
	})

	// Begin MVC Routes
	// -- Root
	e.GET("/", func(c echo.Context) error {
		fmt.Printf("[%s] - Root hit!\n", time.Now())
		return c.JSON(http.StatusOK, map[string]string{
			"service": "genegnome",
			"message": "Welcome to the GeneGnome merge and export service",
		})
	})

	// -- Jobs
	e.POST("/jobs", mvc.JobsSubmit,
		// middleware
		ggm.MandateUserEmailAttribute,
		ggm.ValidateOutputSelectionAttributes)
	e.GET("/jobs/:id", mvc.JobsGetStatus,
		// middleware
		ggm.MandateUserEmailAttribute)
	e.DELETE("/jobs/:id", mvc.JobsDelete,
		// middleware
		ggm.MandateUserEmailAttribute)
	e.GET("/jobs/:id/progress", mvc.ProgressStream,
		// middleware
		ggm.MandateUserEmailAttribute)

	// -- Chunked uploads
	e.POST("/upload/chunks", mvc.UploadsPostChunk)
	e.POST("/upload/finalize", mvc.UploadsFinalize,
		// middleware
		ggm.MandateUserEmailAttribute,
		ggm.ValidateOutputSelectionAttributes)

	// -- Downloads (token is the only credential in the URL)
	e.GET("/download/:token", mvc.DownloadsGet,
		// middleware
		ggm.ValidateDownloadTokenAttribute)

	// Run
	e.Logger.Fatal(e.Start(":" + cfg.Api.Port))
}
