package unittest

import (
	crand "crypto/rand"

	"github.com/ethereum/go-ethereum/common"

	"github.com/opstack/derive-go/model/derive"
)

func ChannelIDFixture() derive.ChannelID {
	var id derive.ChannelID
	_, _ = crand.Read(id[:])
	return id
}

func HashFixture() common.Hash {
	var hash common.Hash
	_, _ = crand.Read(hash[:])
	return hash
}

// BlockInfoFixture returns a base-layer block at the given height, with a
// timestamp of 2 seconds per block.
func BlockInfoFixture(number uint64) derive.BlockInfo {
	return derive.BlockInfo{
		Hash:       HashFixture(),
		Number:     number,
		ParentHash: HashFixture(),
		Time:       number * 2,
	}
}

// FrameFixture returns a non-terminal frame with a random payload of the
// given size.
func FrameFixture(id derive.ChannelID, number uint16, size int) derive.Frame {
	data := make([]byte, size)
	_, _ = crand.Read(data)
	return derive.Frame{
		ID:          id,
		FrameNumber: number,
		Data:        data,
	}
}

// ClosedChannelFrameFixtures returns the complete frame sequence of one
// channel: count frames of the given payload size, the final one terminal.
func ClosedChannelFrameFixtures(id derive.ChannelID, count int, size int) []derive.Frame {
	frames := make([]derive.Frame, 0, count)
	for i := 0; i < count; i++ {
		frame := FrameFixture(id, uint16(i), size)
		frame.IsLast = i == count-1
		frames = append(frames, frame)
	}
	return frames
}
