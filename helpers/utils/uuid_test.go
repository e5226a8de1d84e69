package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateUUID(t *testing.T) {
	a, b := GenerateUUID(), GenerateUUID()
	assert.NotEqual(t, a, b)
	assert.True(t, IsValidUUID(a))
	assert.False(t, IsValidUUID("not-a-uuid"))
}

func TestGenerateShortID(t *testing.T) {
	id := GenerateShortID()
	assert.Len(t, id, 8)
	assert.NotContains(t, id, "-")
}
