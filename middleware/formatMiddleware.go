package middleware

import (
	"net/http"

	"github.com/labstack/echo"

	"github.com/captainzonks/GeneGnome/models/constants/outputformat"
	"github.com/captainzonks/GeneGnome/models/constants/threshold"
	"github.com/captainzonks/GeneGnome/models/constants/vcfmode"
)

/*
	Echo middleware to reject unknown `output_formats`, `vcf_format` or
	`quality_threshold` values before any file is staged
*/
func ValidateOutputSelectionAttributes(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		form, formErr := c.FormParams()
		if formErr != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Error reading form parameters! Check your input")
		}

		for _, format := range form["output_formats"] {
			if !outputformat.IsKnown(format) {
				return echo.NewHTTPError(http.StatusBadRequest,
					"Unknown output format '"+format+"'! Expected parquet, vcf or sqlite")
			}
		}

		if mode := c.FormValue("vcf_format"); len(mode) > 0 && !vcfmode.IsKnown(mode) {
			return echo.NewHTTPError(http.StatusBadRequest,
				"Unknown vcf format '"+mode+"'! Expected merged or per_chromosome")
		}

		if quality := c.FormValue("quality_threshold"); len(quality) > 0 && !threshold.IsKnown(quality) {
			return echo.NewHTTPError(http.StatusBadRequest,
				"Unknown quality threshold '"+quality+"'! Expected R08, R09 or NoFilter")
		}

		return next(c)
	}
}
