package timex

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuration_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"string", `"5s"`, 5 * time.Second, false},
		{"hours", `"720h"`, 720 * time.Hour, false},
		{"nanoseconds", `1000000000`, time.Second, false},
		{"garbage string", `"soon"`, 0, true},
		{"wrong type", `true`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration
			err := json.Unmarshal([]byte(tt.in), &d)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Duration)
		})
	}
}

func TestDuration_MarshalJSON(t *testing.T) {
	b, err := json.Marshal(Duration{30 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, `"30s"`, string(b))
}

func TestUnixNanoConversions(t *testing.T) {
	ts := time.Date(2024, 3, 1, 8, 0, 0, 123, time.FixedZone("X", 3600))
	assert.True(t, ts.Equal(FromUnixNano(ToUnixNano(ts))))
	assert.Equal(t, time.UTC, FromUnixNano(ToUnixNano(ts)).Location())

	assert.Nil(t, NullableUnixNano(nil))
	assert.Equal(t, ToUnixNano(ts), NullableUnixNano(&ts))
}
