package metrics

// metricsFake is a no-op implementation of Metrics
type metricsFake struct{}

// Ensure metricsFake implements Metrics
var _ Metrics = (*metricsFake)(nil)

// NewMetricsFake creates a no-op Metrics
func NewMetricsFake() Metrics {
	return &metricsFake{}
}

// LogEvent is a no-op
func (metrics *metricsFake) LogEvent(_ string, _ map[string]string, _ map[string]interface{}) {
}

// LogEntityEvent is a no-op
func (metrics *metricsFake) LogEntityEvent(_ string, _ string, _ map[string]interface{}) {
}

// Close is a no-op
func (metrics *metricsFake) Close() {
}
