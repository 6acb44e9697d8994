package loader

import (
	"strconv"
	"strings"

	"github.com/geocatalog/pkg/parallel"
	"github.com/geocatalog/pkg/utils"
)

// ExecutorFactory builds the worker pool a load runs on.
type ExecutorFactory struct {
	configured string
	logger     utils.Logger
}

// NewExecutorFactory returns a factory for the configured parallelism, which
// may be empty. The value normally comes from catalog.loading_threads.
func NewExecutorFactory(configured string, logger utils.Logger) *ExecutorFactory {
	return &ExecutorFactory{configured: configured, logger: utils.OrNull(logger)}
}

// Parallelism returns the number of core workers. Unparsable or non-positive
// values fall back to parallel.DefaultParallelism with a warning.
func (f *ExecutorFactory) Parallelism() int {
	value := strings.TrimSpace(f.configured)
	def := parallel.DefaultParallelism()
	if value == "" {
		return def
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		f.logger.Warn("Invalid loading threads value %q, using the default of %d", value, def)
		return def
	}
	if n <= 0 {
		f.logger.Warn("Loading threads must be positive, got %d, using the default of %d", n, def)
		return def
	}
	return n
}

// NewPool returns a started pool named "catalog-loader".
func (f *ExecutorFactory) NewPool() *parallel.Pool {
	return parallel.NewPool(parallel.DefaultPoolConfig().
		WithWorkers(f.Parallelism()).
		WithName("catalog-loader").
		WithLogger(f.logger))
}
