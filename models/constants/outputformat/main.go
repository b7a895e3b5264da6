package outputformat

import (
	"github.com/captainzonks/GeneGnome/models/constants"
)

const (
	Parquet constants.OutputFormat = "parquet"
	Vcf     constants.OutputFormat = "vcf"
	Sqlite  constants.OutputFormat = "sqlite"
)

func IsKnown(text string) bool {
	switch constants.OutputFormat(text) {
	case Parquet, Vcf, Sqlite:
		return true
	}
	return false
}

func Extension(f constants.OutputFormat) string {
	switch f {
	case Parquet:
		return "parquet"
	case Vcf:
		return "vcf.gz"
	case Sqlite:
		return "db"
	}
	return "bin"
}

func MimeType(f constants.OutputFormat) string {
	switch f {
	case Parquet:
		return "application/vnd.apache.parquet"
	case Vcf:
		return "application/gzip"
	case Sqlite:
		return "application/vnd.sqlite3"
	}
	return "application/octet-stream"
}
