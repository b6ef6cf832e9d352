package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/Freeeeeet/tutoring_scheduler/internal/errs"
)

const maxBodyBytes = 1 << 20

// ErrorResponse формат ошибки API
type ErrorResponse struct {
	Error string    `json:"error"`
	Code  errs.Code `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError отдаёт ошибку движка с соответствующим HTTP-статусом; внутренние детали не раскрываются
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	e, ok := errs.As(err)
	if !ok || e.Code == errs.CodeInternal {
		h.logger.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error: "internal error",
			Code:  errs.CodeInternal,
		})
		return
	}

	writeJSON(w, statusFromCode(e.Code), ErrorResponse{Error: e.Message, Code: e.Code})
}

// statusFromCode сопоставляет код ошибки и HTTP-статус
func statusFromCode(code errs.Code) int {
	switch code {
	case errs.CodeValidation:
		return http.StatusBadRequest
	case errs.CodeUnauthorized:
		return http.StatusForbidden
	case errs.CodeNotFound:
		return http.StatusNotFound
	case errs.CodeInvalidTransition,
		errs.CodeOverlap,
		errs.CodeSlotAlreadyBooked:
		return http.StatusConflict
	case errs.CodeExpired:
		return http.StatusGone
	case errs.CodeExtensionNotAllowed,
		errs.CodeCancellationWindowClosed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON читает тело запроса; пустое тело допустимо для необязательных полей
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return errs.Validation(fmt.Sprintf("invalid JSON body: %v", err))
	}
	return nil
}

// list отдаёт пустой массив вместо null
func list[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
