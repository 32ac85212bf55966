package reporting

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/picogrid/killweb-simulations/cmd/killweb/assign"
	"github.com/picogrid/killweb-simulations/cmd/killweb/controllers"
	"github.com/picogrid/killweb-simulations/cmd/killweb/core"
	"github.com/picogrid/killweb-simulations/cmd/killweb/guidance"
)

const instrumentationName = "github.com/picogrid/killweb-simulations/cmd/killweb/reporting"

// Telemetry is a run-scoped OpenTelemetry meter provider. Readings are
// pulled through a manual reader when the run ends.
type Telemetry struct {
	provider *sdkmetric.MeterProvider
	reader   *sdkmetric.ManualReader
}

// MetricReading is one collected data point
type MetricReading struct {
	Name       string  `json:"name"`
	Unit       string  `json:"unit,omitempty"`
	Attributes string  `json:"attributes,omitempty"`
	Value      float64 `json:"value"`
	Count      uint64  `json:"count,omitempty"` // histograms only; Value is then the sum
}

// NewTelemetry creates a meter provider backed by a manual reader
func NewTelemetry() *Telemetry {
	reader := sdkmetric.NewManualReader()
	return &Telemetry{
		provider: sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)),
		reader:   reader,
	}
}

// Meter returns the meter the engagement instruments are created on
func (t *Telemetry) Meter() metric.Meter {
	return t.provider.Meter(instrumentationName)
}

// Collect reads every instrument, sorted by name and attributes
func (t *Telemetry) Collect(ctx context.Context) ([]MetricReading, error) {
	var rm metricdata.ResourceMetrics
	if err := t.reader.Collect(ctx, &rm); err != nil {
		return nil, fmt.Errorf("collecting metrics: %w", err)
	}

	var out []MetricReading
	enc := attribute.DefaultEncoder()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			reading := MetricReading{Name: m.Name, Unit: m.Unit}
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					reading.Attributes, reading.Value = dp.Attributes.Encoded(enc), float64(dp.Value)
					out = append(out, reading)
				}
			case metricdata.Sum[float64]:
				for _, dp := range data.DataPoints {
					reading.Attributes, reading.Value = dp.Attributes.Encoded(enc), dp.Value
					out = append(out, reading)
				}
			case metricdata.Gauge[float64]:
				for _, dp := range data.DataPoints {
					reading.Attributes, reading.Value = dp.Attributes.Encoded(enc), dp.Value
					out = append(out, reading)
				}
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					reading.Attributes, reading.Value, reading.Count = dp.Attributes.Encoded(enc), dp.Sum, dp.Count
					out = append(out, reading)
				}
			}
		}
	}

	slices.SortFunc(out, func(a, b MetricReading) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.Attributes, b.Attributes)
	})
	return out, nil
}

// Shutdown flushes and stops the provider
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return t.provider.Shutdown(ctx)
}

// Total sums the values of every reading named name
func Total(readings []MetricReading, name string) float64 {
	var total float64
	for _, r := range readings {
		if r.Name == name {
			total += r.Value
		}
	}
	return total
}

// Metrics records engagement counters through OpenTelemetry
type Metrics struct {
	arena *core.Arena

	launches     metric.Int64Counter
	dispositions metric.Int64Counter
	assignments  metric.Int64Counter
	trackDrops   metric.Int64Counter
	leaks        metric.Int64Counter
	flightTime   metric.Float64Histogram
	tickPeriod   metric.Float64Gauge

	mu       sync.Mutex
	launched map[core.Handle]float64
}

var _ controllers.Observer = (*Metrics)(nil)

// NewMetrics creates the instruments on m
func NewMetrics(m metric.Meter, arena *core.Arena) (*Metrics, error) {
	mt := &Metrics{arena: arena, launched: make(map[core.Handle]float64)}

	var err error
	mt.launches, err = m.Int64Counter(
		"killweb.interceptors.launched",
		metric.WithDescription("Interceptors launched"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating launch counter: %w", err)
	}

	mt.dispositions, err = m.Int64Counter(
		"killweb.interceptors.resolved",
		metric.WithDescription("Interceptor dispositions by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating disposition counter: %w", err)
	}

	mt.assignments, err = m.Int64Counter(
		"killweb.assignments",
		metric.WithDescription("Assignment engine events by kind"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating assignment counter: %w", err)
	}

	mt.trackDrops, err = m.Int64Counter(
		"killweb.tracks.aged_out",
		metric.WithDescription("Tracks aged out of C2 ledgers"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating track counter: %w", err)
	}

	mt.leaks, err = m.Int64Counter(
		"killweb.raid.leaked",
		metric.WithDescription("Raid aircraft that reached their destination"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating leak counter: %w", err)
	}

	mt.flightTime, err = m.Float64Histogram(
		"killweb.interceptors.flight_time",
		metric.WithDescription("Interceptor time of flight"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating flight time histogram: %w", err)
	}

	mt.tickPeriod, err = m.Float64Gauge(
		"killweb.guidance.tick_period",
		metric.WithDescription("Current guidance tick period per interceptor type"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating tick period gauge: %w", err)
	}

	return mt, nil
}

func (mt *Metrics) unit(h core.Handle) attribute.KeyValue {
	return attribute.String("unit", mt.arena.Name(h))
}

// Launch implements controllers.Observer
func (mt *Metrics) Launch(now float64, unit, interceptor, _ core.Handle, _ int) {
	mt.mu.Lock()
	mt.launched[interceptor] = now
	mt.mu.Unlock()
	mt.launches.Add(context.Background(), 1, metric.WithAttributes(mt.unit(unit)))
}

// Guidance implements controllers.Observer
func (mt *Metrics) Guidance(ev guidance.Event) {
	if ev.Kind == guidance.EventModeChange {
		return
	}
	ctx := context.Background()
	mt.dispositions.Add(ctx, 1, metric.WithAttributes(
		mt.unit(ev.Launcher),
		attribute.String("outcome", string(ev.Kind)),
		attribute.String("mode", ev.To.String()),
	))

	mt.mu.Lock()
	start, ok := mt.launched[ev.Interceptor]
	delete(mt.launched, ev.Interceptor)
	mt.mu.Unlock()
	if ok {
		mt.flightTime.Record(ctx, ev.Time-start, metric.WithAttributes(attribute.String("outcome", string(ev.Kind))))
	}
}

// Assignment implements controllers.Observer
func (mt *Metrics) Assignment(ev assign.Event) {
	mt.assignments.Add(context.Background(), 1, metric.WithAttributes(
		mt.unit(ev.Node),
		attribute.String("kind", string(ev.Kind)),
	))
}

// TrackDropped implements controllers.Observer
func (mt *Metrics) TrackDropped(_ float64, node, _ core.Handle) {
	mt.trackDrops.Add(context.Background(), 1, metric.WithAttributes(mt.unit(node)))
}

// Leak implements controllers.Observer
func (mt *Metrics) Leak(float64, core.Handle) {
	mt.leaks.Add(context.Background(), 1)
}

// PhaseChange implements controllers.Observer
func (mt *Metrics) PhaseChange(_ float64, interceptorType string, period float64) {
	mt.tickPeriod.Record(context.Background(), period, metric.WithAttributes(attribute.String("type", interceptorType)))
}

// InFlight is the number of launches without a disposition yet
func (mt *Metrics) InFlight() int {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	return len(mt.launched)
}
