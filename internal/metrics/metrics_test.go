package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.DefinitionRegistered()
	m.BindingCreated("sources")
	m.BindingCreated("sources")
	m.BindingCreated("representations")
	m.Committed(0)
	m.Committed(3)
	m.CommitFailed()
	m.Deleted(2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.definitionsRegistered))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.bindingsCreated.WithLabelValues("sources")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commits.WithLabelValues("noop")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commits.WithLabelValues("applied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commits.WithLabelValues("failed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.effectiveChanges))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.boundObjects))
}

func TestMetrics_Registry(t *testing.T) {
	m := New()
	m.Fetched()

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "pvbridge_fetches_total")
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.DefinitionRegistered()
		m.BindingCreated("views")
		m.BindingFailed()
		m.Fetched()
		m.Committed(2)
		m.CommitFailed()
		m.Deleted(1)
	})
	assert.Nil(t, m.Registry())
}
