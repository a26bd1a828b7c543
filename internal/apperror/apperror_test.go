package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindMatchingThroughWrapping(t *testing.T) {
	err := fmt.Errorf("confirm payment: %w", NotFound("payment %s not found", "pi_123"))

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrValidation))
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Contains(t, err.Error(), "payment pi_123 not found")
}

func TestGatewayKeepsCause(t *testing.T) {
	cause := errors.New("card_declined")
	err := Gateway(cause, "create payment intent")

	assert.True(t, errors.Is(err, ErrGateway))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "create payment intent: card_declined", err.Error())
}

func TestHTTPStatus(t *testing.T) {
	cases := map[error]int{
		Validation("amount must be positive"):         http.StatusBadRequest,
		NotFound("booking not found"):                 http.StatusNotFound,
		InvalidState("payment is not confirmed"):      http.StatusBadRequest,
		Gateway(errors.New("down"), "refund"):         http.StatusBadRequest,
		Conflict("email already registered"):          http.StatusConflict,
		errors.New("connection reset by peer"):        http.StatusInternalServerError,
		fmt.Errorf("wrapped: %w", NotFound("missing")): http.StatusNotFound,
	}
	for err, want := range cases {
		assert.Equal(t, want, HTTPStatus(err), err.Error())
	}
}
