package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", Validation("Missing required fields"), http.StatusBadRequest},
		{"not found", NotFound("Order not found"), http.StatusNotFound},
		{"conflict", Conflict("busy"), http.StatusConflict},
		{"internal", Internal(errors.New("dynamo down")), http.StatusInternalServerError},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
		{"wrapped", fmt.Errorf("create: %w", NotFound("x")), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestPublicMessage_HidesCause(t *testing.T) {
	err := Internal(errors.New("ResourceNotFoundException: table orders-prod"))
	assert.Equal(t, InternalMessage, PublicMessage(err))
	assert.Contains(t, err.Error(), "orders-prod")

	assert.Equal(t, InternalMessage, PublicMessage(Configuration("unsupported SIEM sink type: %s", "x")))
	assert.Equal(t, "Order not found", PublicMessage(NotFound("Order not found")))
}

func TestKindOf(t *testing.T) {
	err := Configuration("unsupported SIEM sink type: %s", "invalid")
	assert.Equal(t, KindConfiguration, KindOf(err))
	assert.Equal(t, "unsupported SIEM sink type: invalid", err.Error())
	assert.Equal(t, KindInternal, KindOf(errors.New("x")))
}
