package mvc

import (
	"database/sql"

	"github.com/labstack/echo"
	"github.com/redis/go-redis/v9"

	"github.com/captainzonks/GeneGnome/contexts"
	"github.com/captainzonks/GeneGnome/models"
)

func RetrieveCommonElements(c echo.Context) (*contexts.GeneGnomeContext, *models.Config, *sql.DB, *redis.Client) {
	gc := c.(*contexts.GeneGnomeContext)
	return gc, gc.Config, gc.Db, gc.Redis
}
