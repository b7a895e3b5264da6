package contexts

import (
	"database/sql"

	"github.com/labstack/echo"
	"github.com/redis/go-redis/v9"

	"github.com/captainzonks/GeneGnome/models"
	"github.com/captainzonks/GeneGnome/services"
)

type (
	// "Helper" Context to pass into routes that need
	//  the job store, queue client and service singletons
	GeneGnomeContext struct {
		echo.Context
		Config          *models.Config
		Db              *sql.DB
		Redis           *redis.Client
		SecurityService *services.SecurityService
		UploadService   *services.UploadService

		// populated by validation middleware
		UserEmail string
		UserID    string
	}
)
