package utils

import (
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	t.Run("with nil values", func(t *testing.T) {
		config := NewConfig(nil)
		require.NotNil(t, config)
		assert.Len(t, config.Keys(), 0)
	})

	t.Run("with values", func(t *testing.T) {
		values := map[string]string{
			"BACKEND_BASE_URL": "http://127.0.0.1:8000",
			"LIVEKIT_URL":      "wss://example.livekit.cloud",
		}
		config := NewConfig(values)

		assert.Equal(t, "http://127.0.0.1:8000", config.Get("BACKEND_BASE_URL"))
		assert.Equal(t, "wss://example.livekit.cloud", config.Get("LIVEKIT_URL"))

		// Verify it's a copy, not a reference
		values["BACKEND_BASE_URL"] = "modified"
		assert.NotEqual(t, "modified", config.Get("BACKEND_BASE_URL"))
	})
}

func TestNewConfigFromEnv(t *testing.T) {
	envContent := "AVATAR_TEST_KEY1=test_value1\nAVATAR_TEST_KEY2=test_value2\n"
	tmpFile, err := os.CreateTemp("", "test_env_*.env")
	require.NoError(t, err)
	defer os.Remove(tmpFile.Name())

	_, err = tmpFile.WriteString(envContent)
	require.NoError(t, err)
	tmpFile.Close()

	t.Cleanup(func() {
		os.Unsetenv("AVATAR_TEST_KEY1")
		os.Unsetenv("AVATAR_TEST_KEY2")
	})

	config := NewConfigFromEnv(tmpFile.Name(), "does-not-exist.env")

	require.NotNil(t, config)
	assert.Equal(t, "test_value1", config.Get("AVATAR_TEST_KEY1"))
	assert.Equal(t, "test_value2", config.Get("AVATAR_TEST_KEY2"))
}

func TestEnvFile(t *testing.T) {
	t.Setenv("ENV_FILE", "")
	assert.Equal(t, ".env", EnvFile())

	t.Setenv("ENV_FILE", "custom.env")
	assert.Equal(t, "custom.env", EnvFile())
}

func TestConfigGetWithDefault(t *testing.T) {
	config := NewConfig(map[string]string{
		"existing": "value",
		"empty":    "",
	})

	assert.Equal(t, "value", config.GetWithDefault("existing", "default"))
	assert.Equal(t, "default", config.GetWithDefault("missing", "default"))
	assert.Equal(t, "default", config.GetWithDefault("empty", "default"))
}

func TestConfigGetBool(t *testing.T) {
	config := NewConfig(map[string]string{
		"true_bool":  "true",
		"false_bool": "false",
		"true_1":     "1",
		"true_yes":   "yes",
		"false_off":  "off",
		"invalid":    "invalid_bool",
		"empty":      "",
	})

	tests := []struct {
		key      string
		expected bool
	}{
		{"true_bool", true},
		{"false_bool", false},
		{"true_1", true},
		{"true_yes", true},
		{"false_off", false},
		{"invalid", false},
		{"empty", false},
		{"missing", false},
	}

	for _, test := range tests {
		t.Run(test.key, func(t *testing.T) {
			got := config.GetBool(test.key)
			assert.Equal(t, test.expected, got, "GetBool(%s)", test.key)
		})
	}

	assert.True(t, config.GetBoolWithDefault("missing", true))
	assert.False(t, config.GetBoolWithDefault("empty", true))
}

func TestConfigGetInt(t *testing.T) {
	config := NewConfig(map[string]string{
		"valid_int":   "42",
		"negative":    "-10",
		"invalid_int": "not_a_number",
		"empty":       "",
	})

	assert.Equal(t, 42, config.GetInt("valid_int"))
	assert.Equal(t, -10, config.GetInt("negative"))
	assert.Equal(t, 0, config.GetInt("invalid_int"))
	assert.Equal(t, 0, config.GetInt("missing"))

	assert.Equal(t, 42, config.GetIntWithDefault("valid_int", 5))
	assert.Equal(t, 5, config.GetIntWithDefault("invalid_int", 5))
	assert.Equal(t, 5, config.GetIntWithDefault("empty", 5))
	assert.Equal(t, 5, config.GetIntWithDefault("missing", 5))
}

func TestConfigGetDurationWithDefault(t *testing.T) {
	config := NewConfig(map[string]string{
		"duration": "250ms",
		"seconds":  "3",
		"invalid":  "soon",
		"empty":    "",
	})

	tests := []struct {
		key      string
		expected time.Duration
	}{
		{"duration", 250 * time.Millisecond},
		{"seconds", 3 * time.Second},
		{"invalid", time.Minute},
		{"empty", time.Minute},
		{"missing", time.Minute},
	}

	for _, test := range tests {
		t.Run(test.key, func(t *testing.T) {
			assert.Equal(t, test.expected, config.GetDurationWithDefault(test.key, time.Minute))
		})
	}
}

func TestConfigSetAndKeys(t *testing.T) {
	config := NewConfig(map[string]string{"a": "1"})

	config.Set("b", "2")
	config.Set("a", "updated")

	assert.Equal(t, "updated", config.Get("a"))
	assert.True(t, config.Has("b"))
	assert.False(t, config.Has("c"))

	keys := config.Keys()
	sort.Strings(keys)
	assert.Equal(t, []string{"a", "b"}, keys)
}

func TestConfigConcurrentAccess(t *testing.T) {
	config := NewConfig(nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			config.Set("key", "value")
		}()
		go func() {
			defer wg.Done()
			_ = config.GetBoolWithDefault("key", false)
		}()
	}
	wg.Wait()

	assert.Equal(t, "value", config.Get("key"))
}
