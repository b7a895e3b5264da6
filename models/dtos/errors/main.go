package errors

import (
	"time"

	"github.com/captainzonks/GeneGnome/models/dtos"
)

/*
	Utility functions to facillitate returning error responses to HTTP clients
*/

func createSimple(code int, status string, message string) dtos.GeneralErrorResponseDto {
	return dtos.GeneralErrorResponseDto{
		Code:      code,
		Message:   status,
		Timestamp: time.Now(),
		Errors: []dtos.GeneralError{
			{
				Message: message,
			},
		},
	}
}

// -- Simplest: 1 error with message
func CreateSimpleBadRequest(message string) dtos.GeneralErrorResponseDto {
	return createSimple(400, "Bad Request", message)
}
func CreateSimpleUnauthorized(message string) dtos.GeneralErrorResponseDto {
	return createSimple(401, "Unauthorized", message)
}
func CreateSimpleNotFound(message string) dtos.GeneralErrorResponseDto {
	return createSimple(404, "Not Found", message)
}
func CreateSimpleGone(message string) dtos.GeneralErrorResponseDto {
	return createSimple(410, "Gone", message)
}
func CreateSimpleTooManyRequests(message string) dtos.GeneralErrorResponseDto {
	return createSimple(429, "Too Many Requests", message)
}
func CreateSimpleInternalServerError(message string) dtos.GeneralErrorResponseDto {
	return createSimple(500, "Internal Server Error", message)
}
