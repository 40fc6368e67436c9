package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ProvisioningCollector counts position rejections and wizard outcomes. It
// satisfies both sdh.MetricsRecorder and wizard.Recorder.
type ProvisioningCollector struct {
	gatherer prometheus.Gatherer

	PositionRejections *prometheus.CounterVec
	WizardCommits      *prometheus.CounterVec
}

// NewProvisioningCollector registers the provisioning metrics against reg,
// defaulting to the global Prometheus registry when nil.
func NewProvisioningCollector(reg prometheus.Registerer) (*ProvisioningCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	rejections, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sdh_position_rejections_total",
		Help: "Rejected timeslot selections by reason.",
	}, []string{"reason"}), "sdh_position_rejections_total")
	if err != nil {
		return nil, err
	}

	commits, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sdh_wizard_commits_total",
		Help: "Link creations issued by wizards, by link kind and outcome.",
	}, []string{"kind", "outcome"}), "sdh_wizard_commits_total")
	if err != nil {
		return nil, err
	}

	return &ProvisioningCollector{
		gatherer:           gatherer,
		PositionRejections: rejections,
		WizardCommits:      commits,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *ProvisioningCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// PositionRejected counts one rejected selection.
func (c *ProvisioningCollector) PositionRejected(reason string) {
	if c == nil || c.PositionRejections == nil {
		return
	}
	if reason == "" {
		reason = "other"
	}
	c.PositionRejections.WithLabelValues(reason).Inc()
}

// WizardCommitted counts one create call issued by a wizard.
func (c *ProvisioningCollector) WizardCommitted(kind string, ok bool) {
	if c == nil || c.WizardCommits == nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	c.WizardCommits.WithLabelValues(kind, outcome).Inc()
}

// WriteTextfile writes the gathered metrics in the text exposition format,
// for the node exporter textfile collector.
func (c *ProvisioningCollector) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.Gatherer())
}
