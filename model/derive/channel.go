package derive

import (
	"bytes"
	"fmt"
)

// FrameOverhead is the fixed bookkeeping cost, in bytes, attributed to every
// buffered frame on top of its payload. It keeps a flood of tiny frames from
// evading the channel bank's byte budget.
const FrameOverhead = 200

// Channel accumulates the frames of a single channel ID and reconstructs the
// channel's contiguous byte-stream once every frame up to the terminal frame
// has been received.
//
// A Channel is mutated exclusively through AddFrame and is not safe for
// concurrent use.
type Channel struct {
	id              ChannelID
	openBlockNumber uint64

	// inputs maps frame number to its payload. Keys are unique; a conflicting
	// payload for a known frame number is rejected, never overwritten.
	inputs map[uint16][]byte

	// closed is set once a terminal frame has been accepted, fixing the
	// channel length at lastFrameNumber+1 frames.
	closed          bool
	lastFrameNumber uint16

	// highestInclusionNumber is the highest base-layer block number at which
	// a frame of this channel was ingested.
	highestInclusionNumber uint64

	// size is maintained incrementally on every accepted frame so that
	// bank-level size queries stay O(channel count).
	size uint64
}

// NewChannel opens a channel at the given base-layer origin. The origin block
// number anchors the channel's timeout window.
func NewChannel(id ChannelID, openBlock BlockInfo) *Channel {
	return &Channel{
		id:              id,
		openBlockNumber: openBlock.Number,
		inputs:          make(map[uint16][]byte),
	}
}

func (c *Channel) ID() ChannelID {
	return c.id
}

// OpenBlockNumber returns the base-layer block number at which the channel
// was opened.
func (c *Channel) OpenBlockNumber() uint64 {
	return c.openBlockNumber
}

// HighestInclusionNumber returns the highest base-layer block number at which
// a frame of this channel was accepted.
func (c *Channel) HighestInclusionNumber() uint64 {
	return c.highestInclusionNumber
}

// Size returns the buffered size of the channel: the payload bytes of all
// distinct frames plus FrameOverhead per frame.
func (c *Channel) Size() uint64 {
	return c.size
}

// AddFrame ingests one frame at the given base-layer inclusion block.
//
// The add is rejected without mutating the channel if the frame belongs to a
// different channel, conflicts with an already received payload for the same
// frame number, or lies beyond the length fixed by an earlier terminal frame.
// Re-adding a frame with identical payload is a no-op.
func (c *Channel) AddFrame(frame Frame, inclusionBlock BlockInfo) error {
	if frame.ID != c.id {
		return fmt.Errorf("cannot add frame %s to channel %s: %w", frame, c.id, ErrFrameChannelMismatch)
	}
	if existing, ok := c.inputs[frame.FrameNumber]; ok {
		if bytes.Equal(existing, frame.Data) {
			// Exact duplicate, nothing to do.
			return nil
		}
		return fmt.Errorf("frame %s: %w", frame, ErrFrameConflict)
	}
	if c.closed {
		if frame.FrameNumber > c.lastFrameNumber {
			return fmt.Errorf("frame %s past terminal frame %d: %w", frame, c.lastFrameNumber, ErrFrameAfterClose)
		}
		if frame.IsLast {
			return fmt.Errorf("frame %s: %w", frame, ErrFrameAfterClose)
		}
	}

	c.inputs[frame.FrameNumber] = frame.Data
	c.size += frame.Size()
	if inclusionBlock.Number > c.highestInclusionNumber {
		c.highestInclusionNumber = inclusionBlock.Number
	}

	if frame.IsLast {
		c.closed = true
		c.lastFrameNumber = frame.FrameNumber
		// Frames beyond the now-fixed channel length are unusable; drop them
		// and give their size back.
		for number, payload := range c.inputs {
			if number > c.lastFrameNumber {
				delete(c.inputs, number)
				c.size -= uint64(len(payload)) + FrameOverhead
			}
		}
	}
	return nil
}

// IsReady reports whether a terminal frame has been accepted and every frame
// number up to it has been received.
func (c *Channel) IsReady() bool {
	return c.closed && len(c.inputs) == int(c.lastFrameNumber)+1
}

// FrameData reconstructs the channel byte-stream by concatenating payloads in
// frame number order. It fails if any frame is missing; callers are expected
// to check IsReady first.
func (c *Channel) FrameData() ([]byte, error) {
	data := make([]byte, 0, c.size)
	for i := uint64(0); i <= uint64(c.lastFrameNumber); i++ {
		payload, ok := c.inputs[uint16(i)]
		if !ok {
			return nil, fmt.Errorf("channel %s is missing frame %d: %w", c.id, i, ErrChannelNotReady)
		}
		data = append(data, payload...)
	}
	return data, nil
}
