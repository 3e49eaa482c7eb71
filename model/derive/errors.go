package derive

import (
	"errors"
)

var (
	// ErrFrameChannelMismatch is returned when a frame is added to a channel
	// with a different channel ID.
	ErrFrameChannelMismatch = errors.New("frame id does not match channel id")

	// ErrFrameConflict is returned when a frame number was already received
	// with a different payload. The duplicate number with conflicting bytes
	// is a protocol violation by the producer.
	ErrFrameConflict = errors.New("frame number already received with different payload")

	// ErrFrameAfterClose is returned when a frame number exceeds the channel
	// length fixed by an earlier terminal frame.
	ErrFrameAfterClose = errors.New("frame number exceeds closed channel length")

	// ErrChannelNotReady is returned when reading the data of a channel that
	// is still missing frames.
	ErrChannelNotReady = errors.New("channel is not ready")
)
