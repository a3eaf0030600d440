package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", notFound("Order not found"))

	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.Equal(t, KindInsufficientStock, KindOf(insufficientStock("x")))
	assert.Equal(t, KindServer, KindOf(errors.New("boom")))
}

func TestPublicMessage(t *testing.T) {
	cause := errors.New("database is locked")
	err := serverError("Failed to update order status", cause)

	assert.Equal(t, "Failed to update order status", PublicMessage(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "Internal server error", PublicMessage(cause))
}
