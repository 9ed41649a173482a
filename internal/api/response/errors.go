package response

import (
	"errors"
	"net/http"

	"design_vault/internal/lib/apperr"
)

var (
	ErrInvalidRequestFormat = ErrorResponse{
		Error:   "invalid_request",
		Details: "Invalid request format",
	}

	ErrInvalidFileID = ErrorResponse{
		Error:   string(apperr.KindValidation),
		Details: "Invalid file ID",
		Fields:  map[string]string{"id": "must be a valid UUID"},
	}

	ErrFileRequired = ErrorResponse{
		Error:   string(apperr.KindValidation),
		Details: "File is required",
		Fields:  map[string]string{"file": "file is required"},
	}
)

// FromError переводит ошибку приложения в HTTP-статус и тело ответа.
func FromError(err error) (int, ErrorResponse) {
	kind := apperr.KindOf(err)

	resp := ErrorResponse{
		Error:   string(kind),
		Details: apperr.UserMessage(err),
		Fields:  apperr.FieldsOf(err),
	}

	var appErr *apperr.Error
	if errors.As(err, &appErr) && kind == apperr.KindValidation && len(appErr.Fields) == 0 && appErr.Err != nil {
		resp.Details = appErr.Err.Error()
	}

	return StatusFor(kind), resp
}

func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
