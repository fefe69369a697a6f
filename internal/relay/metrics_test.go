package relay

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/embedded"
	"go.opentelemetry.io/otel/metric/noop"
)

// recordingProvider hands out a meter that keeps the registered gauge
// callback so tests can run it and count unregistrations.
type recordingProvider struct {
	embedded.MeterProvider
	meter *recordingMeter
}

func (p *recordingProvider) Meter(string, ...metric.MeterOption) metric.Meter {
	return p.meter
}

type recordingMeter struct {
	noop.Meter
	callback     metric.Callback
	unregistered atomic.Int32
}

func (m *recordingMeter) RegisterCallback(f metric.Callback, _ ...metric.Observable) (metric.Registration, error) {
	m.callback = f
	return &recordingRegistration{meter: m}, nil
}

type recordingRegistration struct {
	embedded.Registration
	meter *recordingMeter
}

func (r *recordingRegistration) Unregister() error {
	r.meter.unregistered.Add(1)
	return nil
}

type gaugeObserver struct {
	embedded.Observer
	last int64
}

func (o *gaugeObserver) ObserveInt64(_ metric.Int64Observable, v int64, _ ...metric.ObserveOption) {
	o.last = v
}

func (o *gaugeObserver) ObserveFloat64(metric.Float64Observable, float64, ...metric.ObserveOption) {}

func newRecordingProvider() *recordingProvider {
	return &recordingProvider{meter: &recordingMeter{}}
}

func TestWaiterGaugeReleasedOnClose(t *testing.T) {
	provider := newRecordingProvider()
	r := NewRegistry(WithMeterProvider(provider))
	require.NotNil(t, provider.meter.callback)

	results := park(t, r, context.Background(), 2, 0)

	var obs gaugeObserver
	require.NoError(t, provider.meter.callback(context.Background(), &obs))
	assert.Equal(t, int64(2), obs.last)

	r.Close()
	<-results
	<-results
	assert.Equal(t, int32(1), provider.meter.unregistered.Load())

	r.Close()
	assert.Equal(t, int32(1), provider.meter.unregistered.Load(), "second Close must not unregister again")
}
