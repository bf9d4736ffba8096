package api

import (
	"errors"
	"net/http"

	"partial-matching/internal/fund"
	"partial-matching/internal/matching"
)

// ErrorCode represents unified API error codes
type ErrorCode string

const (
	ErrorCodeInvalidArgument     ErrorCode = "INVALID_ARGUMENT"
	ErrorCodeEngineNotFound      ErrorCode = "ENGINE_NOT_FOUND"
	ErrorCodeOrderNotFound       ErrorCode = "ORDER_NOT_FOUND"
	ErrorCodeFundNotFound        ErrorCode = "FUND_NOT_FOUND"
	ErrorCodeNotFound            ErrorCode = "NOT_FOUND"
	ErrorCodeEngineExists        ErrorCode = "ENGINE_EXISTS"
	ErrorCodeEngineBusy          ErrorCode = "ENGINE_BUSY"
	ErrorCodeDuplicateOrder      ErrorCode = "DUPLICATE_ORDER"
	ErrorCodeOrderNotOpen        ErrorCode = "ORDER_NOT_OPEN"
	ErrorCodeDuplicateRequest    ErrorCode = "DUPLICATE_REQUEST"
	ErrorCodeConflict            ErrorCode = "CONFLICT"
	ErrorCodeMatchBudgetExceeded ErrorCode = "MATCH_BUDGET_EXCEEDED"
	ErrorCodeInvariantViolation  ErrorCode = "INVARIANT_VIOLATION"
	ErrorCodeInternalError       ErrorCode = "INTERNAL_ERROR"
)

// MapErrorToHTTP maps errors to HTTP status codes and error responses
func MapErrorToHTTP(err error) (int, ErrorResponse) {
	if err == nil {
		return http.StatusOK, ErrorResponse{}
	}

	var validationErr *matching.ValidationError
	if errors.As(err, &validationErr) {
		return http.StatusBadRequest, ErrorResponse{
			Code:    string(ErrorCodeInvalidArgument),
			Message: err.Error(),
			Field:   validationErr.Field,
		}
	}

	if errors.Is(err, fund.ErrFundNotFound) {
		return http.StatusNotFound, ErrorResponse{
			Code:    string(ErrorCodeFundNotFound),
			Message: err.Error(),
			Field:   "fund_id",
		}
	}

	var notFoundErr *matching.NotFoundError
	if errors.As(err, &notFoundErr) {
		code := ErrorCodeNotFound
		switch notFoundErr.Kind {
		case "engine":
			code = ErrorCodeEngineNotFound
		case "order":
			code = ErrorCodeOrderNotFound
		}
		return http.StatusNotFound, ErrorResponse{
			Code:    string(code),
			Message: err.Error(),
		}
	}

	var conflictErr *matching.ConflictError
	if errors.As(err, &conflictErr) {
		code := ErrorCodeConflict
		switch conflictErr.Kind {
		case "engine":
			code = ErrorCodeEngineExists
			if conflictErr.Reason == matching.ReasonBusy {
				code = ErrorCodeEngineBusy
			}
		case "order":
			code = ErrorCodeDuplicateOrder
			if conflictErr.Reason != matching.ReasonDuplicateID {
				code = ErrorCodeOrderNotOpen
			}
		case "idempotency_key":
			code = ErrorCodeDuplicateRequest
		}
		return http.StatusConflict, ErrorResponse{
			Code:    string(code),
			Message: err.Error(),
		}
	}

	if errors.Is(err, matching.ErrMatchBudgetExceeded) {
		return http.StatusUnprocessableEntity, ErrorResponse{
			Code:    string(ErrorCodeMatchBudgetExceeded),
			Message: err.Error(),
		}
	}

	if errors.Is(err, matching.ErrInvariantViolation) {
		return http.StatusInternalServerError, ErrorResponse{
			Code:    string(ErrorCodeInvariantViolation),
			Message: err.Error(),
		}
	}

	// Default to internal error
	return http.StatusInternalServerError, ErrorResponse{
		Code:    string(ErrorCodeInternalError),
		Message: err.Error(),
	}
}
