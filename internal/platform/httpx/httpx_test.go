package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/selling-area/internal/platform/db"
	"github.com/odyssey-erp/selling-area/internal/shared"
)

func TestRespondErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("item 9: %w", shared.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("qty: %w", shared.ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("batch moved: %w", shared.ErrConflict), http.StatusConflict},
		{shared.ErrIdempotencyConflict, http.StatusConflict},
		{fmt.Errorf("%w: eof", db.ErrStoreUnavailable), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		RespondError(rr, tc.err)
		require.Equal(t, tc.status, rr.Code, tc.err.Error())

		var body ProblemDetail
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		require.Equal(t, tc.status, body.Status)
	}
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"qty":1,"extra":true}`))
	var target struct {
		Qty int `json:"qty"`
	}
	err := DecodeJSON(req, &target)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestValidateFoldsFieldErrors(t *testing.T) {
	type input struct {
		Quantity int    `validate:"gt=0"`
		Actor    string `validate:"required"`
	}
	err := Validate(validator.New(), input{})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Contains(t, err.Error(), "Quantity must satisfy gt=0")
	require.Contains(t, err.Error(), "Actor must satisfy required")

	require.NoError(t, Validate(validator.New(), input{Quantity: 1, Actor: "a@b"}))
}
