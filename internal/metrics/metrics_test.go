package metrics

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geocatalog/internal/loader"
	"github.com/geocatalog/pkg/catalog"
	apperrors "github.com/geocatalog/pkg/errors"
	"github.com/geocatalog/pkg/parallel"
)

func sampleReport() *loader.Report {
	return &loader.Report{
		Parallelism: 4,
		Decoded:     12,
		Seeded:      2,
		Added: map[catalog.Kind]int{
			catalog.KindWorkspace: 2,
			catalog.KindLayer:     5,
		},
		Failed: []loader.Failure{{Path: "workspaces/ws1/broken.xml", Err: assert.AnError}},
		Dropped: []loader.Drop{
			{Object: "StyleInfo[s1]", Err: apperrors.New(apperrors.CodeScopeViolation, "scope")},
			{Object: "LayerInfo[l1]", Err: apperrors.New(apperrors.CodeMissingReference, "missing")},
			{Object: "LayerInfo[l2]", Err: apperrors.New(apperrors.CodeMissingReference, "missing")},
		},
		Patched: []loader.Patch{{Object: "LayerInfo[l3]"}},
		Phases: []loader.PhaseTiming{
			{Phase: loader.PhaseGlobalStyles, Duration: 250 * time.Millisecond, Records: 3},
			{Phase: loader.PhaseWorkspaces, Duration: 2 * time.Second, Records: 9},
		},
		Pool:    parallel.PoolMetrics{SubmittedTasks: 10, CompletedTasks: 10, SparesStarted: 1},
		Elapsed: 3 * time.Second,
	}
}

func TestLoadMetrics_Record(t *testing.T) {
	m := NewLoadMetrics()
	m.Record(sampleReport(), nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.loadsTotal.WithLabelValues("success")))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.decoded))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.patched))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.parallelism))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.objects.WithLabelValues("LayerInfo")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.dropped.WithLabelValues(apperrors.CodeMissingReference)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dropped.WithLabelValues(apperrors.CodeScopeViolation)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.phaseDuration.WithLabelValues("workspaces")))
	assert.Equal(t, 9.0, testutil.ToFloat64(m.phaseRecords.WithLabelValues("workspaces")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sparesStarted))
	assert.Equal(t, 1, testutil.CollectAndCount(m.loadDuration))
	assert.Greater(t, testutil.ToFloat64(m.lastSuccessSec), 0.0)
}

func TestLoadMetrics_RecordReplacesLastLoad(t *testing.T) {
	m := NewLoadMetrics()
	m.Record(sampleReport(), nil)

	second := sampleReport()
	second.Added = map[catalog.Kind]int{catalog.KindStyle: 7}
	second.Dropped = nil
	m.Record(second, nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.loadsTotal.WithLabelValues("success")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.objects))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.objects.WithLabelValues("StyleInfo")))
	assert.Equal(t, 0, testutil.CollectAndCount(m.dropped))
}

func TestLoadMetrics_RecordOutcome(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status string
	}{
		{name: "Interrupted", err: apperrors.Wrap(apperrors.CodeInterrupted, "load interrupted", context.Canceled), status: "interrupted"},
		{name: "Failure", err: apperrors.New(apperrors.CodePhaseFailure, "phase failed"), status: "failure"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewLoadMetrics()
			m.Record(nil, tt.err)

			assert.Equal(t, 1.0, testutil.ToFloat64(m.loadsTotal.WithLabelValues(tt.status)))
			assert.Equal(t, 0.0, testutil.ToFloat64(m.lastSuccessSec))
		})
	}
}

func TestLoadMetrics_WriteTextfile(t *testing.T) {
	m := NewLoadMetrics()
	m.Record(sampleReport(), nil)

	path := filepath.Join(t.TempDir(), "geocatalog.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `geocatalog_loads_total{status="success"} 1`)
	assert.Contains(t, text, `geocatalog_catalog_objects_added{kind="WorkspaceInfo"} 2`)
	assert.True(t, strings.Contains(text, "# TYPE geocatalog_load_duration_seconds histogram"))

	err = m.WriteTextfile(filepath.Join(t.TempDir(), "missing", "dir", "x.prom"))
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeIOError, apperrors.GetErrorCode(err))
}
