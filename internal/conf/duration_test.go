package conf

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDuration_MarshalJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		duration Duration
		expected string
	}{
		{"zero", Duration(0), `"0s"`},
		{"lookback", Duration(10 * time.Minute), `"10m0s"`},
		{"dedup", Duration(time.Hour), `"1h0m0s"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b, err := json.Marshal(tt.duration)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(b))
		})
	}
}

func TestDuration_UnmarshalJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected Duration
		wantErr  bool
	}{
		{"minutes string", `"10m"`, Duration(10 * time.Minute), false},
		{"compound string", `"1h30m"`, Duration(90 * time.Minute), false},
		{"seconds string", `"600"`, Duration(10 * time.Minute), false},
		{"seconds number", `600`, Duration(10 * time.Minute), false},
		{"null", `null`, Duration(0), false},
		{"garbage", `"soon"`, 0, true},
		{"boolean", `true`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := Duration(time.Second)
			err := json.Unmarshal([]byte(tt.input), &d)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, d)
		})
	}
}

func TestDuration_YAML(t *testing.T) {
	t.Parallel()

	type window struct {
		Dedup Duration `yaml:"dedup"`
	}

	b, err := yaml.Marshal(window{Dedup: Duration(time.Hour)})
	require.NoError(t, err)
	assert.Contains(t, string(b), "1h0m0s")

	var got window
	require.NoError(t, yaml.Unmarshal(b, &got))
	assert.Equal(t, Duration(time.Hour), got.Dedup)

	var bare window
	require.NoError(t, yaml.Unmarshal([]byte("dedup: 3600"), &bare))
	assert.Equal(t, Duration(time.Hour), bare.Dedup, "bare integer is seconds")

	var bad window
	assert.Error(t, yaml.Unmarshal([]byte("dedup: [1, 2]"), &bad))
}

func TestDurationDecodeHook(t *testing.T) {
	t.Parallel()

	type target struct {
		Window  Duration
		Plain   time.Duration
		Brokers []string
	}

	input := map[string]any{
		"window":  "15m",
		"plain":   "2s",
		"brokers": "a:9092,b:9092",
	}

	var out target
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: DurationDecodeHook(),
		Result:     &out,
	})
	require.NoError(t, err)
	require.NoError(t, dec.Decode(input))

	assert.Equal(t, Duration(15*time.Minute), out.Window)
	assert.Equal(t, 2*time.Second, out.Plain)
	assert.Equal(t, []string{"a:9092", "b:9092"}, out.Brokers)

	out = target{}
	dec, err = mapstructure.NewDecoder(&mapstructure.DecoderConfig{DecodeHook: DurationDecodeHook(), Result: &out})
	require.NoError(t, err)
	require.NoError(t, dec.Decode(map[string]any{"window": 120}))
	assert.Equal(t, Duration(2*time.Minute), out.Window)
}
