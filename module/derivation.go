package module

// DerivationMetrics exposes the channel bank's observable events. It is
// implemented by module/metrics.DerivationCollector for prometheus export and
// by module/metrics.NoopCollector for metrics-free embedding.
//
// Implementations must be non-blocking; metrics never affect control flow.
type DerivationMetrics interface {
	// FrameIngested is called when a frame is accepted into a channel.
	FrameIngested(sizeBytes int)

	// FrameDropped is called when a frame from the untrusted producer is
	// discarded, with a short static reason label.
	FrameDropped(reason string)

	// ChannelOpened is called when a first frame opens a new channel.
	ChannelOpened()

	// ChannelTimedOut is called when a stale channel is evicted on read.
	ChannelTimedOut()

	// ChannelPruned is called when a channel is evicted to respect the
	// bank's byte budget.
	ChannelPruned(sizeBytes uint64)

	// ChannelRead is called when a completed channel's byte-stream is
	// handed downstream.
	ChannelRead(sizeBytes int)

	// ChannelBankBuffered reports the total buffered size after a mutation.
	ChannelBankBuffered(sizeBytes uint64)
}
