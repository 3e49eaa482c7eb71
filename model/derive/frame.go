package derive

import (
	"fmt"
)

// Frame is the smallest unit of channel data extracted from base-layer
// transactions. Frames for the same channel may arrive in any order, may be
// duplicated, and may be withheld indefinitely by the producer.
// A Frame is immutable once constructed.
type Frame struct {
	ID          ChannelID
	FrameNumber uint16
	Data        []byte
	IsLast      bool
}

// Size returns the memory footprint the frame contributes to a channel:
// its payload plus a fixed per-frame bookkeeping overhead.
func (f Frame) Size() uint64 {
	return uint64(len(f.Data)) + FrameOverhead
}

func (f Frame) String() string {
	return fmt.Sprintf("%s:%d", f.ID, f.FrameNumber)
}
