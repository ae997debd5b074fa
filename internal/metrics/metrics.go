package metrics

import (
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/plugfox/foxy-entity-store/internal/config"
	"github.com/plugfox/foxy-entity-store/internal/httpclient"
)

// Event names written by the repositories
const (
	EventEntitySave = "entity_save"
	EventEntityGet  = "entity_get"
)

// Metrics defines the contract for logging metrics
type Metrics interface {
	LogEvent(eventName string, tags map[string]string, fields map[string]interface{})
	LogEntityEvent(eventName string, backend string, fields map[string]interface{})
	Close()
}

type metricsImpl struct {
	client      influxdb2.Client
	writeAPI    api.WriteAPI
	defaultTags map[string]string // Constant tags, like the environment
}

// Ensure metricsImpl implements Metrics
var _ Metrics = (*metricsImpl)(nil)

// New returns the InfluxDB implementation, or the no-op one when no URL is configured
func New(cfg *config.MetricsConfig, defaultTags map[string]string) (Metrics, error) {
	if cfg == nil || cfg.URL == "" {
		return NewMetricsFake(), nil
	}

	options := influxdb2.DefaultOptions()
	httpClient, err := httpclient.NewHttpSocks5Client(&cfg.Proxy)
	if err != nil {
		return nil, err
	}
	if httpClient != nil {
		options.SetHTTPClient(httpClient)
	}

	return NewMetricsImpl(cfg.URL, cfg.Token, cfg.Org, cfg.Bucket, defaultTags, options), nil
}

// NewMetricsImpl initializes the influx writer with constant tags
func NewMetricsImpl(url string, token string, org string, bucket string, defaultTags map[string]string, options *influxdb2.Options) Metrics {
	client := influxdb2.NewClientWithOptions(url, token, options)
	writeAPI := client.WriteAPI(org, bucket)

	return &metricsImpl{
		client:      client,
		writeAPI:    writeAPI,
		defaultTags: defaultTags,
	}
}

// Universal method to log an event with customizable tags and fields
func (m *metricsImpl) LogEvent(eventName string, tags map[string]string, fields map[string]interface{}) {
	if len(fields) == 0 {
		return
	}

	point := influxdb2.NewPointWithMeasurement("store_event").
		AddTag("event", eventName).
		SetTime(time.Now())

	// Add constant default tags
	for key, value := range m.defaultTags {
		point.AddTag(key, value)
	}

	// Add custom tags
	for key, value := range tags {
		point.AddTag(key, value)
	}

	// Add custom fields
	for key, value := range fields {
		point.AddField(key, value)
	}

	m.writeAPI.WritePoint(point)
}

// Specific method for entity operations, tagged by backend.
// The uid is deliberately not a tag, it would explode series cardinality.
func (m *metricsImpl) LogEntityEvent(eventName string, backend string, fields map[string]interface{}) {
	m.LogEvent(eventName, map[string]string{"backend": backend}, fields)
}

// Close flushes the write API and closes the client
func (m *metricsImpl) Close() {
	m.writeAPI.Flush()
	m.client.Close()
}
