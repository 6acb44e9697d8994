package telemetry

import (
	"strconv"

	"go.opentelemetry.io/otel/sdk/trace"
)

var samplers = map[string]func(ratio float64) trace.Sampler{
	"always_on":  func(float64) trace.Sampler { return trace.AlwaysSample() },
	"always_off": func(float64) trace.Sampler { return trace.NeverSample() },
	"traceidratio": func(r float64) trace.Sampler {
		return trace.TraceIDRatioBased(r)
	},
	"parentbased_always_on": func(float64) trace.Sampler {
		return trace.ParentBased(trace.AlwaysSample())
	},
	"parentbased_always_off": func(float64) trace.Sampler {
		return trace.ParentBased(trace.NeverSample())
	},
	"parentbased_traceidratio": func(r float64) trace.Sampler {
		return trace.ParentBased(trace.TraceIDRatioBased(r))
	},
}

// createSampler returns the sampler named by cfg.Sampler. Empty or unknown
// names sample everything.
func createSampler(cfg *Config) trace.Sampler {
	newSampler, ok := samplers[cfg.Sampler]
	if !ok {
		return trace.AlwaysSample()
	}
	return newSampler(parseRatio(cfg.SamplerArg))
}

// parseRatio parses a sampling ratio clamped to [0, 1]; unparsable input
// yields 1.
func parseRatio(s string) float64 {
	ratio, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 1.0
	}
	return min(max(ratio, 0), 1)
}
