package metrics

import (
	"sync"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "status_led"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	mu            sync.Mutex
	inFlight      prom.Gauge
	requests      *prom.CounterVec
	responses     *prom.CounterVec
	notifications *prom.CounterVec
	malformed     prom.Counter
	reconnects    prom.Counter
	labelChanges  prom.Counter
	label         *prom.GaugeVec
	commits       prom.Counter
	suppressed    prom.Counter
}

// NewPrometheusRecorder constructs the metrics and registers them with reg.
func NewPrometheusRecorder(reg prom.Registerer) *PrometheusRecorder {
	pr := &PrometheusRecorder{
		inFlight: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "requests_in_flight",
			Help:      "Requests sent to the daemon that have not been answered",
		}),
		requests: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Requests sent to the daemon by method",
		}, []string{"method"}),
		responses: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "responses_total",
			Help:      "Responses received from the daemon by request id",
		}, []string{"id"}),
		notifications: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Push notifications received from the daemon by action",
		}, []string{"action"}),
		malformed: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_messages_total",
			Help:      "Inbound messages dropped because they could not be decoded",
		}),
		reconnects: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "connects_total",
			Help:      "Successful connections to the daemon socket",
		}),
		labelChanges: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "label_changes_total",
			Help:      "Composite status label changes",
		}),
		label: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "label",
			Help:      "Current composite status label (value is always 1)",
		}, []string{"label"}),
		commits: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "commits_total",
			Help:      "Frames committed to the strip",
		}),
		suppressed: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "suppressed_commits_total",
			Help:      "Render ticks whose commit was skipped because nothing changed",
		}),
	}
	reg.MustRegister(pr.inFlight, pr.requests, pr.responses, pr.notifications, pr.malformed,
		pr.reconnects, pr.labelChanges, pr.label, pr.commits, pr.suppressed)
	return pr
}

func (p *PrometheusRecorder) SetInFlight(n int)        { p.inFlight.Set(float64(n)) }
func (p *PrometheusRecorder) IncRequest(method string) { p.requests.WithLabelValues(method).Inc() }
func (p *PrometheusRecorder) IncResponse(id string)    { p.responses.WithLabelValues(id).Inc() }
func (p *PrometheusRecorder) IncNotification(action string) {
	p.notifications.WithLabelValues(action).Inc()
}
func (p *PrometheusRecorder) IncMalformed()  { p.malformed.Inc() }
func (p *PrometheusRecorder) IncReconnect()  { p.reconnects.Inc() }
func (p *PrometheusRecorder) IncCommit()     { p.commits.Inc() }
func (p *PrometheusRecorder) IncSuppressed() { p.suppressed.Inc() }

// SetLabel makes label the only series of the label gauge. changed is false
// when the label was published again unchanged, e.g. after a model reload.
func (p *PrometheusRecorder) SetLabel(label string, changed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if changed {
		p.labelChanges.Inc()
	}
	p.label.Reset()
	p.label.WithLabelValues(label).Set(1)
}
