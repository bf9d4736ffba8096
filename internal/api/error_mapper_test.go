package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"partial-matching/internal/fund"
	"partial-matching/internal/matching"
)

func TestMapErrorToHTTP(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   ErrorCode
	}{
		{"validation", &matching.ValidationError{Field: "side", Reason: "bad"}, http.StatusBadRequest, ErrorCodeInvalidArgument},
		{"fund", fmt.Errorf("%w: X", fund.ErrFundNotFound), http.StatusNotFound, ErrorCodeFundNotFound},
		{"engine not found", &matching.NotFoundError{Kind: "engine", ID: "e"}, http.StatusNotFound, ErrorCodeEngineNotFound},
		{"order not found", &matching.NotFoundError{Kind: "order", ID: "o"}, http.StatusNotFound, ErrorCodeOrderNotFound},
		{"engine exists", &matching.ConflictError{Kind: "engine", ID: "e", Reason: matching.ReasonAlreadyExists}, http.StatusConflict, ErrorCodeEngineExists},
		{"engine busy", &matching.ConflictError{Kind: "engine", ID: "e", Reason: matching.ReasonBusy}, http.StatusConflict, ErrorCodeEngineBusy},
		{"duplicate order", &matching.ConflictError{Kind: "order", ID: "o", Reason: matching.ReasonDuplicateID}, http.StatusConflict, ErrorCodeDuplicateOrder},
		{"order not open", &matching.ConflictError{Kind: "order", ID: "o", Reason: "order is COMPLETED"}, http.StatusConflict, ErrorCodeOrderNotOpen},
		{"idempotency", &matching.ConflictError{Kind: "idempotency_key", ID: "k", Reason: matching.ReasonPayloadMismatch}, http.StatusConflict, ErrorCodeDuplicateRequest},
		{"budget", fmt.Errorf("pass: %w", matching.ErrMatchBudgetExceeded), http.StatusUnprocessableEntity, ErrorCodeMatchBudgetExceeded},
		{"invariant", fmt.Errorf("pass: %w", matching.ErrInvariantViolation), http.StatusInternalServerError, ErrorCodeInvariantViolation},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, ErrorCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := MapErrorToHTTP(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, string(tt.code), resp.Code)
			assert.NotEmpty(t, resp.Message)
		})
	}

	status, _ := MapErrorToHTTP(nil)
	assert.Equal(t, http.StatusOK, status)
}
