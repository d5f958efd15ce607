//go:build !tinygo

package metrics

import (
	"testing"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder_Counts(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)

	pr.IncLogAppend()
	pr.IncLogAppend()
	pr.AddLogEvicted(3)
	pr.IncWiFiRetry()
	pr.IncWiFiOutcome("failed")
	pr.IncToggle("start", "rejected")
	pr.IncStorageMount("internal", true)
	pr.IncStorageMount("removable", false)
	pr.SetRemovablePresent(true)
	pr.AddUIEventsDropped(4)

	assert.Equal(t, 2.0, testutil.ToFloat64(pr.logAppends))
	assert.Equal(t, 3.0, testutil.ToFloat64(pr.logEvicted))
	assert.Equal(t, 1.0, testutil.ToFloat64(pr.wifiOutcomes.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pr.toggles.WithLabelValues("start", "rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pr.storageMounts.WithLabelValues("removable", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pr.removablePresent))
	assert.Equal(t, 4.0, testutil.ToFloat64(pr.uiDropped))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, mfs)
}

func TestOr(t *testing.T) {
	assert.IsType(t, NoopRecorder{}, Or(nil))
	pr := NewPrometheusRecorder(nil)
	assert.Same(t, pr, Or(pr))
}
