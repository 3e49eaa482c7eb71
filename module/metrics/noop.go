package metrics

type NoopCollector struct{}

func NewNoopCollector() *NoopCollector {
	nc := &NoopCollector{}
	return nc
}

func (nc *NoopCollector) FrameIngested(sizeBytes int)          {}
func (nc *NoopCollector) FrameDropped(reason string)           {}
func (nc *NoopCollector) ChannelOpened()                       {}
func (nc *NoopCollector) ChannelTimedOut()                     {}
func (nc *NoopCollector) ChannelPruned(sizeBytes uint64)       {}
func (nc *NoopCollector) ChannelRead(sizeBytes int)            {}
func (nc *NoopCollector) ChannelBankBuffered(sizeBytes uint64) {}
