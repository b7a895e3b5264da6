package middleware

import (
	"net/http"
	"net/mail"

	"github.com/labstack/echo"

	"github.com/captainzonks/GeneGnome/contexts"
)

/*
	Echo middleware to ensure a valid `user_email` was provided, either
	as a form value (uploads) or as the X-User-Email header (reads).
	The address doubles as the user identifier scoping every job query.
*/
func MandateUserEmailAttribute(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		email := c.FormValue("user_email")
		if len(email) == 0 {
			email = c.Request().Header.Get("X-User-Email")
		}
		if len(email) == 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "Missing 'user_email'!")
		}

		parsed, parseErr := mail.ParseAddress(email)
		if parseErr != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid 'user_email'! Check your input")
		}

		gc := c.(*contexts.GeneGnomeContext)
		gc.UserEmail = parsed.Address
		gc.UserID = parsed.Address

		return next(c)
	}
}
