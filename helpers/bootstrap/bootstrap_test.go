package bootstrap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBrokers(t *testing.T) {
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, Brokers(" k1:9092, ,k2:9092"))
	assert.Nil(t, Brokers(""))
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("MATCHER_TEST_INT", "12")
	assert.Equal(t, 12, GetEnvInt("MATCHER_TEST_INT", 3))

	t.Setenv("MATCHER_TEST_INT", "twelve")
	assert.Equal(t, 3, GetEnvInt("MATCHER_TEST_INT", 3))

	assert.Equal(t, "fallback", GetEnv("MATCHER_TEST_UNSET", "fallback"))
}
