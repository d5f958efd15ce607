//go:build !tinygo

package metrics

import (
	"net/http"
	"sync"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ftpdisplay"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once             sync.Once
	reg              *prom.Registry
	logAppends       prom.Counter
	logEvicted       prom.Counter
	logTruncated     prom.Counter
	wifiRetries      prom.Counter
	wifiOutcomes     *prom.CounterVec
	svcTransitions   *prom.CounterVec
	toggles          *prom.CounterVec
	storageMounts    *prom.CounterVec
	removablePresent prom.Gauge
	bootPhases       *prom.CounterVec
	uiDropped        prom.Counter
}

// NewPrometheusRecorder constructs and registers the metrics on reg (a fresh registry when nil).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{reg: reg}
	pr.once.Do(func() {
		pr.logAppends = prom.NewCounter(prom.CounterOpts{
			Namespace: namespace, Name: "log_appends_total",
			Help: "Lines appended to the on-screen activity log",
		})
		pr.logEvicted = prom.NewCounter(prom.CounterOpts{
			Namespace: namespace, Name: "log_evicted_lines_total",
			Help: "Lines evicted from the activity log to honour its budgets",
		})
		pr.logTruncated = prom.NewCounter(prom.CounterOpts{
			Namespace: namespace, Name: "log_truncated_total",
			Help: "Appends whose single line exceeded the byte budget",
		})
		pr.wifiRetries = prom.NewCounter(prom.CounterOpts{
			Namespace: namespace, Name: "wifi_retries_total",
			Help: "WiFi reconnect attempts after a disconnect",
		})
		pr.wifiOutcomes = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace, Name: "wifi_outcomes_total",
			Help: "Connectivity phase outcomes",
		}, []string{"outcome"})
		pr.svcTransitions = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace, Name: "service_transitions_total",
			Help: "Observed file-transfer service state changes",
		}, []string{"state"})
		pr.toggles = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace, Name: "toggle_requests_total",
			Help: "User start/stop requests by result",
		}, []string{"action", "result"})
		pr.storageMounts = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace, Name: "storage_mounts_total",
			Help: "Storage mount attempts by backend and result",
		}, []string{"backend", "result"})
		pr.removablePresent = prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace, Name: "storage_removable_present",
			Help: "1 when the removable medium answered the last liveness probe",
		})
		pr.bootPhases = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace, Name: "boot_phases_total",
			Help: "Boot phase completions by result",
		}, []string{"phase", "result"})
		pr.uiDropped = prom.NewCounter(prom.CounterOpts{
			Namespace: namespace, Name: "ui_events_dropped_total",
			Help: "Log events discarded because the render queue was full",
		})
		reg.MustRegister(pr.logAppends, pr.logEvicted, pr.logTruncated, pr.wifiRetries, pr.wifiOutcomes,
			pr.svcTransitions, pr.toggles, pr.storageMounts, pr.removablePresent, pr.bootPhases, pr.uiDropped)
	})
	return pr
}

// Handler exposes the recorder's registry over HTTP.
func (pr *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(pr.reg, promhttp.HandlerOpts{})
}

func (pr *PrometheusRecorder) IncLogAppend()       { pr.logAppends.Inc() }
func (pr *PrometheusRecorder) AddLogEvicted(n int) { pr.logEvicted.Add(float64(n)) }
func (pr *PrometheusRecorder) IncLogTruncated()    { pr.logTruncated.Inc() }
func (pr *PrometheusRecorder) IncWiFiRetry()       { pr.wifiRetries.Inc() }
func (pr *PrometheusRecorder) IncWiFiOutcome(outcome string) {
	pr.wifiOutcomes.WithLabelValues(outcome).Inc()
}
func (pr *PrometheusRecorder) IncServiceTransition(state string) {
	pr.svcTransitions.WithLabelValues(state).Inc()
}
func (pr *PrometheusRecorder) IncToggle(action, result string) {
	pr.toggles.WithLabelValues(action, result).Inc()
}
func (pr *PrometheusRecorder) IncStorageMount(backend string, ok bool) {
	res := "failed"
	if ok {
		res = "ok"
	}
	pr.storageMounts.WithLabelValues(backend, res).Inc()
}
func (pr *PrometheusRecorder) SetRemovablePresent(present bool) {
	v := 0.0
	if present {
		v = 1
	}
	pr.removablePresent.Set(v)
}
func (pr *PrometheusRecorder) IncBootPhase(phase, result string) {
	pr.bootPhases.WithLabelValues(phase, result).Inc()
}

func (pr *PrometheusRecorder) AddUIEventsDropped(n int) { pr.uiDropped.Add(float64(n)) }
