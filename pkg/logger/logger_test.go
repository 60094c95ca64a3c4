package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONCarriesServiceName(t *testing.T) {
	var buf bytes.Buffer
	log := newWithWriter(&buf, "debug", "json")

	log.Info().Str("user_id", "u1").Msg("balance updated")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "points-ledger", line["service"])
	assert.Equal(t, "u1", line["user_id"])
	assert.Equal(t, "info", line["level"])
}

func TestNew_Level(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"nonsense", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			log := newWithWriter(&bytes.Buffer{}, tt.in, "json")
			assert.Equal(t, tt.want, log.GetLevel())
		})
	}
}
