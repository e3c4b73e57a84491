package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// StoreMetrics implements the engine's observer contract: resident-state
// gauges plus lifetime counters.
type StoreMetrics struct {
	byteSize prometheus.Gauge
	msgCount prometheus.Gauge
	groups   prometheus.Gauge
	inserted prometheus.Counter
	deleted  prometheus.Counter
	pruned   prometheus.Counter
}

// NewStoreMetrics registers the store metric set on the default registry.
func NewStoreMetrics() *StoreMetrics {
	return NewStoreMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewStoreMetricsWithRegistry registers the store metric set on reg.
func NewStoreMetricsWithRegistry(reg prometheus.Registerer) *StoreMetrics {
	factory := promauto.With(reg)
	return &StoreMetrics{
		byteSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "msg_store",
			Name:      "resident_bytes",
			Help:      "Bytes currently accounted against the store budget",
		}),
		msgCount: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "msg_store",
			Name:      "resident_messages",
			Help:      "Messages currently resident in the store",
		}),
		groups: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "msg_store",
			Name:      "groups",
			Help:      "Nonempty priority groups",
		}),
		inserted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "msg_store",
			Name:      "inserted_total",
			Help:      "Messages accepted by admission",
		}),
		deleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "msg_store",
			Name:      "deleted_total",
			Help:      "Messages removed by explicit delete",
		}),
		pruned: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "msg_store",
			Name:      "pruned_total",
			Help:      "Messages evicted to satisfy a byte budget",
		}),
	}
}

func (m *StoreMetrics) RecordState(byteSize, msgCount, groupCount uint64) {
	m.byteSize.Set(float64(byteSize))
	m.msgCount.Set(float64(msgCount))
	m.groups.Set(float64(groupCount))
}

func (m *StoreMetrics) RecordInserted(n uint64) { m.inserted.Add(float64(n)) }
func (m *StoreMetrics) RecordDeleted(n uint64)  { m.deleted.Add(float64(n)) }
func (m *StoreMetrics) RecordPruned(n uint64)   { m.pruned.Add(float64(n)) }
