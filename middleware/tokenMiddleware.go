package middleware

import (
	"encoding/base64"
	"net/http"

	"github.com/labstack/echo"
)

/*
	Echo middleware to ensure the `token` path parameter is shaped like
	one of our 256-bit URL-safe tokens. Anything else gets the same 404
	an unknown token would, without touching the job store.
*/
func ValidateDownloadTokenAttribute(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := c.Param("token")
		if len(token) == 0 {
			return echo.NewHTTPError(http.StatusNotFound, "Unknown download token")
		}

		raw, decodeErr := base64.RawURLEncoding.DecodeString(token)
		if decodeErr != nil || len(raw) != 32 {
			return echo.NewHTTPError(http.StatusNotFound, "Unknown download token")
		}

		return next(c)
	}
}
