package derivation

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/opstack/derive-go/model/derive"
	"github.com/opstack/derive-go/module"
)

// capacity hint for the channel queue after a reset; deliberately small and
// not tied to prior load.
const resetQueueHint = 10

// ChannelBank is a stateful stage that buffers channel frames and emits full
// channel data. It does the following:
//  1. Applies frames pulled from the previous stage to their channel.
//  2. Attempts to read a channel when it is ready.
//  3. Prunes channels (not frames) when the bank is too large.
//
// The bank reads before it ingests, so pruning occurs at an odd point: the
// bank is not allowed to exceed its byte budget between successive calls to
// IngestFrame, but it may transiently exceed it between a read and the next
// ingest. Reads never prune.
//
// A ChannelBank is exclusively owned by the goroutine driving the pipeline
// and is not safe for concurrent use.
type ChannelBank struct {
	log     zerolog.Logger
	cfg     *derive.RollupConfig
	metrics module.DerivationMetrics

	// channels indexes buffered channels by ID; channelQueue mirrors its
	// keys in strict FIFO insertion order. Every mutation updates both.
	channels     map[derive.ChannelID]*derive.Channel
	channelQueue []derive.ChannelID

	// prev is the previous stage of the derivation pipeline.
	prev FrameSource
}

var _ ResettableStage = (*ChannelBank)(nil)

// NewChannelBank creates a new channel bank stage pulling frames from prev.
func NewChannelBank(log zerolog.Logger, cfg *derive.RollupConfig, metrics module.DerivationMetrics, prev FrameSource) *ChannelBank {
	return &ChannelBank{
		log:          log.With().Str("stage", "channel_bank").Logger(),
		cfg:          cfg,
		metrics:      metrics,
		channels:     make(map[derive.ChannelID]*derive.Channel),
		channelQueue: make([]derive.ChannelID, 0, resetQueueHint),
		prev:         prev,
	}
}

// Origin returns the base-layer block the pipeline currently derives from.
func (cb *ChannelBank) Origin() *derive.BlockInfo {
	return cb.prev.Origin()
}

// Size returns the total buffered size of the bank by accumulating over all
// channels.
func (cb *ChannelBank) Size() uint64 {
	var total uint64
	for _, channel := range cb.channels {
		total += channel.Size()
	}
	return total
}

// prune evicts channels from the front of the queue, oldest first, until the
// bank is within its byte budget. Eviction ignores readiness and timeout
// state: strict FIFO keeps the bound deterministic and cheap, at the cost of
// occasionally discarding a channel one frame short of completion.
func (cb *ChannelBank) prune() error {
	totalSize := cb.Size()
	for totalSize > cb.cfg.MaxChannelBankSize {
		if len(cb.channelQueue) == 0 {
			return fmt.Errorf("channel bank exceeds its size budget but has no channel to prune")
		}
		id := cb.channelQueue[0]
		channel, ok := cb.channels[id]
		if !ok {
			return fmt.Errorf("channel %s is queued but missing from the bank", id)
		}
		cb.channelQueue = cb.channelQueue[1:]
		delete(cb.channels, id)
		totalSize -= channel.Size()

		cb.log.Debug().
			Stringer("channel", id).
			Uint64("size", channel.Size()).
			Msg("pruned channel over bank size budget")
		cb.metrics.ChannelPruned(channel.Size())
	}
	cb.metrics.ChannelBankBuffered(totalSize)
	return nil
}

// IngestFrame adds new frame data to the channel bank. It must only be
// called once all buffered data has been read, and only after the pipeline
// has established a base-layer origin.
//
// Frames from the untrusted producer never fail ingestion: a frame for a
// timed-out channel, or one the channel rejects, is logged and dropped so
// that a malicious producer cannot stall derivation.
func (cb *ChannelBank) IngestFrame(frame derive.Frame) error {
	origin := cb.prev.Origin()
	if origin == nil {
		return fmt.Errorf("cannot ingest frame %s: no origin", frame)
	}

	channel, ok := cb.channels[frame.ID]
	if !ok {
		channel = derive.NewChannel(frame.ID, *origin)
		cb.channels[frame.ID] = channel
		cb.channelQueue = append(cb.channelQueue, frame.ID)
		cb.metrics.ChannelOpened()
	}

	if cb.timedOut(channel, origin.Number) {
		// Stale channels refuse new data but stay buffered; eviction is
		// lazy, on read or via pruning.
		cb.log.Warn().
			Stringer("channel", frame.ID).
			Uint64("open_block", channel.OpenBlockNumber()).
			Uint64("origin", origin.Number).
			Msg("dropping frame for timed-out channel")
		cb.metrics.FrameDropped("channel_timeout")
		return cb.prune()
	}

	if err := channel.AddFrame(frame, *origin); err != nil {
		cb.log.Warn().
			Err(err).
			Stringer("frame", frame).
			Msg("failed to add frame to channel, dropping")
		cb.metrics.FrameDropped("rejected_by_channel")
		return cb.prune()
	}
	cb.metrics.FrameIngested(len(frame.Data))

	return cb.prune()
}

// Read returns the raw data of the first ready channel and removes it from
// the bank.
//
// It returns ErrEOF when nothing buffered can be read right now, and
// (nil, nil) when it made progress without producing data (a timed-out
// channel was stripped from the front of the queue); the caller should read
// again in the latter case.
func (cb *ChannelBank) Read() ([]byte, error) {
	if len(cb.channelQueue) == 0 {
		cb.log.Debug().Msg("no channels to read from")
		return nil, ErrEOF
	}

	origin := cb.prev.Origin()
	if origin == nil {
		return nil, fmt.Errorf("cannot read channel bank: no origin")
	}

	// Strip a timed-out channel from the front of the queue. There may be
	// more stale channels behind it; returning without data makes the
	// caller come back until the head is live.
	first := cb.channelQueue[0]
	channel, ok := cb.channels[first]
	if !ok {
		return nil, fmt.Errorf("channel %s is queued but missing from the bank", first)
	}
	if cb.timedOut(channel, origin.Number) {
		cb.log.Warn().
			Stringer("channel", first).
			Uint64("open_block", channel.OpenBlockNumber()).
			Uint64("origin", origin.Number).
			Msg("dropping timed-out channel")
		delete(cb.channels, first)
		cb.channelQueue = cb.channelQueue[1:]
		cb.metrics.ChannelTimedOut()
		cb.metrics.ChannelBankBuffered(cb.Size())
		return nil, nil
	}

	// Pre-Canyon, only the head of the queue may be read: strict
	// head-of-line ordering. Post-Canyon, the first ready channel anywhere
	// in the queue is returned, so one withheld channel cannot stall
	// derivation behind it. Canyon activates on the first base-layer block
	// whose timestamp reaches the activation time.
	if !cb.cfg.IsCanyon(origin.Time) {
		return cb.tryReadChannelAtIndex(0, origin.Number)
	}

	for index := range cb.channelQueue {
		data, err := cb.tryReadChannelAtIndex(index, origin.Number)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, ErrEOF) {
			return nil, err
		}
	}
	return nil, ErrEOF
}

// tryReadChannelAtIndex reads the channel at the given queue index. It
// returns ErrEOF if the channel is timed out or not ready; on success the
// channel is removed from both the map and the queue.
func (cb *ChannelBank) tryReadChannelAtIndex(index int, originNumber uint64) ([]byte, error) {
	id := cb.channelQueue[index]
	channel, ok := cb.channels[id]
	if !ok {
		return nil, fmt.Errorf("channel %s is queued but missing from the bank", id)
	}

	if cb.timedOut(channel, originNumber) || !channel.IsReady() {
		return nil, ErrEOF
	}

	delete(cb.channels, id)
	cb.channelQueue = append(cb.channelQueue[:index], cb.channelQueue[index+1:]...)

	data, err := channel.FrameData()
	if err != nil {
		// The channel reported ready but failed reconstruction; this is an
		// internal invariant violation, not bad producer input.
		return nil, fmt.Errorf("could not reconstruct channel %s: %w", id, err)
	}

	cb.log.Debug().
		Stringer("channel", id).
		Int("size", len(data)).
		Msg("read full channel")
	cb.metrics.ChannelRead(len(data))
	cb.metrics.ChannelBankBuffered(cb.Size())

	return data, nil
}

// NextData pulls the next piece of channel data. Unlike most stages it
// attempts to read buffered data before loading new input, which the pruning
// bound depends upon.
//
// After ingesting one new frame it always returns ErrNotEnoughData instead
// of retrying the read, so each call does a bounded amount of work; the
// caller re-drives the stage.
func (cb *ChannelBank) NextData(ctx context.Context) ([]byte, error) {
	data, err := cb.Read()
	if err == nil {
		// Either channel data, or nil after stripping a stale channel; both
		// are results for the caller.
		return data, nil
	}
	if !errors.Is(err, ErrEOF) {
		return nil, fmt.Errorf("failed to read channel bank: %w", err)
	}

	frame, err := cb.prev.NextFrame(ctx)
	if err != nil {
		return nil, err
	}
	if err := cb.IngestFrame(frame); err != nil {
		return nil, err
	}
	return nil, ErrNotEnoughData
}

// Reset drops all buffered channel state and reports ErrEOF, the pipeline
// convention for "no data yet, re-derive from scratch".
func (cb *ChannelBank) Reset(ctx context.Context, base derive.BlockInfo, cfg derive.SystemConfig) error {
	cb.log.Debug().
		Uint64("origin", base.Number).
		Msg("resetting channel bank")
	cb.channels = make(map[derive.ChannelID]*derive.Channel)
	cb.channelQueue = make([]derive.ChannelID, 0, resetQueueHint)
	cb.metrics.ChannelBankBuffered(0)
	return ErrEOF
}

func (cb *ChannelBank) timedOut(channel *derive.Channel, originNumber uint64) bool {
	return channel.OpenBlockNumber()+cb.cfg.ChannelTimeout < originNumber
}
