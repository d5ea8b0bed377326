package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	err := Errorf(ErrCodeUnknownQuery, "unknown query id %d", 7)
	assert.Equal(t, "UNKNOWN_QUERY: unknown query id 7", err.Error())
	assert.Equal(t, "unknown query id 7", err.Message)
}

func TestErrorHelpersSeeWrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("subscribe: %w", Errorf(ErrCodeInvalidVariables, "invalid variables object"))

	assert.True(t, IsEngineError(wrapped))
	assert.True(t, HasCode(wrapped, ErrCodeInvalidVariables))
	assert.False(t, HasCode(wrapped, ErrCodeParse))
	assert.False(t, IsEngineError(fmt.Errorf("plain")))
}
