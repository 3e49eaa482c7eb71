package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/opstack/derive-go/module"
)

var (
	_ module.DerivationMetrics = (*DerivationCollector)(nil)
	_ module.DerivationMetrics = (*NoopCollector)(nil)
)

const (
	namespaceDerivation  = "derivation"
	subsystemChannelBank = "channel_bank"
)

// DerivationCollector reports channel bank activity to prometheus.
type DerivationCollector struct {
	framesIngested   prometheus.Counter
	framesDropped    *prometheus.CounterVec
	channelsOpened   prometheus.Counter
	channelsTimedOut prometheus.Counter
	channelsPruned   prometheus.Counter
	prunedBytes      prometheus.Counter
	channelsRead     prometheus.Counter
	channelBytesRead prometheus.Counter
	bufferedBytes    prometheus.Gauge
}

func NewDerivationCollector() *DerivationCollector {

	dc := &DerivationCollector{

		framesIngested: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceDerivation,
			Subsystem: subsystemChannelBank,
			Name:      "frames_ingested_total",
			Help:      "count of frames accepted into a channel",
		}),

		framesDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceDerivation,
			Subsystem: subsystemChannelBank,
			Name:      "frames_dropped_total",
			Help:      "count of frames discarded from the untrusted producer",
		}, []string{"reason"}),

		channelsOpened: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceDerivation,
			Subsystem: subsystemChannelBank,
			Name:      "channels_opened_total",
			Help:      "count of channels opened by a first frame",
		}),

		channelsTimedOut: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceDerivation,
			Subsystem: subsystemChannelBank,
			Name:      "channels_timed_out_total",
			Help:      "count of stale channels evicted on read",
		}),

		channelsPruned: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceDerivation,
			Subsystem: subsystemChannelBank,
			Name:      "channels_pruned_total",
			Help:      "count of channels evicted to respect the byte budget",
		}),

		prunedBytes: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceDerivation,
			Subsystem: subsystemChannelBank,
			Name:      "pruned_bytes_total",
			Help:      "total buffered bytes reclaimed by pruning",
		}),

		channelsRead: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceDerivation,
			Subsystem: subsystemChannelBank,
			Name:      "channels_read_total",
			Help:      "count of completed channels handed downstream",
		}),

		channelBytesRead: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceDerivation,
			Subsystem: subsystemChannelBank,
			Name:      "channel_bytes_read_total",
			Help:      "total reconstructed channel bytes handed downstream",
		}),

		bufferedBytes: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespaceDerivation,
			Subsystem: subsystemChannelBank,
			Name:      "buffered_bytes",
			Help:      "total size of all buffered channels",
		}),
	}

	return dc
}

func (dc *DerivationCollector) FrameIngested(sizeBytes int) {
	dc.framesIngested.Inc()
}

func (dc *DerivationCollector) FrameDropped(reason string) {
	dc.framesDropped.WithLabelValues(reason).Inc()
}

func (dc *DerivationCollector) ChannelOpened() {
	dc.channelsOpened.Inc()
}

func (dc *DerivationCollector) ChannelTimedOut() {
	dc.channelsTimedOut.Inc()
}

func (dc *DerivationCollector) ChannelPruned(sizeBytes uint64) {
	dc.channelsPruned.Inc()
	dc.prunedBytes.Add(float64(sizeBytes))
}

func (dc *DerivationCollector) ChannelRead(sizeBytes int) {
	dc.channelsRead.Inc()
	dc.channelBytesRead.Add(float64(sizeBytes))
}

func (dc *DerivationCollector) ChannelBankBuffered(sizeBytes uint64) {
	dc.bufferedBytes.Set(float64(sizeBytes))
}
