package telemetry

import (
	"strings"
	"testing"
)

func TestCreateSampler(t *testing.T) {
	tests := []struct {
		sampler    string
		samplerArg string
		want       string
	}{
		{"", "", "AlwaysOnSampler"},
		{"unknown", "", "AlwaysOnSampler"},
		{"always_on", "", "AlwaysOnSampler"},
		{"always_off", "", "AlwaysOffSampler"},
		{"traceidratio", "0.5", "TraceIDRatioBased{0.5}"},
		{"parentbased_always_on", "", "ParentBased{root:AlwaysOnSampler"},
		{"parentbased_always_off", "", "ParentBased{root:AlwaysOffSampler"},
		{"parentbased_traceidratio", "0.25", "ParentBased{root:TraceIDRatioBased{0.25}"},
	}

	for _, tt := range tests {
		name := tt.sampler
		if name == "" {
			name = "default"
		}
		t.Run(name, func(t *testing.T) {
			s := createSampler(&Config{Sampler: tt.sampler, SamplerArg: tt.samplerArg})
			if !strings.HasPrefix(s.Description(), tt.want) {
				t.Errorf("Expected sampler %q, got %q", tt.want, s.Description())
			}
		})
	}
}

func TestParseRatio(t *testing.T) {
	tests := []struct {
		input    string
		expected float64
	}{
		{"", 1.0},
		{"0.5", 0.5},
		{"0", 0},
		{"1", 1.0},
		{"0.001", 0.001},
		{"invalid", 1.0},
		{"-0.5", 0},
		{"1.5", 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseRatio(tt.input); got != tt.expected {
				t.Errorf("Expected %f, got %f", tt.expected, got)
			}
		})
	}
}
