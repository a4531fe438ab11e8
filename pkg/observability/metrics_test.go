package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/flow"
	"github.com/aretw0/loom/pkg/schema"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics(t *testing.T) (*Metrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)
	return m, reg
}

func TestObserveGraph(t *testing.T) {
	m, _ := newTestMetrics(t)

	g := flow.New()
	stop := m.ObserveGraph(g)

	bp, err := g.AddBlueprint("main", flow.Template{
		In:  schema.MustParse("{text: string}"),
		Out: schema.MustParse("{text: string}"),
	})
	require.NoError(t, err)
	require.NoError(t, bp.ConnectPaths("in.text", "out.text", false))

	// Both ends of a link report it.
	assert.Equal(t, 2.0, testutil.ToFloat64(m.graphEvents.WithLabelValues("connected")))
	assert.Positive(t, testutil.ToFloat64(m.graphEvents.WithLabelValues("child_created")))

	stop()
	require.NoError(t, bp.DisconnectPaths("in.text", "out.text"))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.graphEvents.WithLabelValues("disconnected")))
}

func TestRecordCheck(t *testing.T) {
	m, reg := newTestMetrics(t)

	m.RecordCheck(domain.CheckResult{Allowed: true})
	m.RecordCheck(domain.CheckResult{Reason: "cycle"})
	m.RecordCheck(domain.CheckResult{Reason: "cycle"})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.checks.WithLabelValues("allowed", "")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.checks.WithLabelValues("rejected", "cycle")))

	n, err := testutil.GatherAndCount(reg, "loom_connections_checks_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRecordImportAndLibrary(t *testing.T) {
	m, reg := newTestMetrics(t)

	m.RecordImport(2*time.Millisecond, nil)
	m.RecordImport(time.Millisecond, errors.New("bad"))
	m.SetLibrarySize(7)
	m.RecordWrite("save")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.imports.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.imports.WithLabelValues("invalid")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.librarySize))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.documentWrites.WithLabelValues("save")))

	n, err := testutil.GatherAndCount(reg, "loom_documents_import_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSubscribers(t *testing.T) {
	m, _ := newTestMetrics(t)
	m.SubscriberAdded()
	m.SubscriberAdded()
	m.SubscriberRemoved()
	m.ChangeDropped()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.subscribers))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dropped))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordCheck(domain.CheckResult{})
		m.RecordImport(time.Second, nil)
		m.SetLibrarySize(1)
		m.ChangeDropped()
		m.ObserveGraph(flow.New())()
	})
}

func TestNewMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMetrics(reg)
	require.NoError(t, err)
	_, err = NewMetrics(reg)
	assert.Error(t, err)
}
