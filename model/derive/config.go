package derive

import (
	"github.com/ethereum/go-ethereum/common"
)

// Protocol constants for the channel bank. These are consensus parameters:
// every node must prune and time out channels identically.
const (
	// DefaultChannelTimeout is the number of base-layer blocks a channel may
	// remain open before new frames for it are refused.
	DefaultChannelTimeout = 300

	// DefaultMaxChannelBankSize is the byte budget for all buffered channel
	// data combined.
	DefaultMaxChannelBankSize = 100_000_000
)

// RollupConfig carries the immutable protocol parameters shared read-only by
// every stage of a derivation pipeline instance.
type RollupConfig struct {
	// ChannelTimeout is the channel open window, in base-layer blocks.
	ChannelTimeout uint64

	// MaxChannelBankSize bounds the total buffered channel data, in bytes.
	MaxChannelBankSize uint64

	// CanyonTime is the activation timestamp of the Canyon upgrade on the
	// base layer. Nil means the upgrade never activates.
	CanyonTime *uint64
}

// DefaultRollupConfig returns a config with the protocol default constants
// and no Canyon activation.
func DefaultRollupConfig() *RollupConfig {
	return &RollupConfig{
		ChannelTimeout:     DefaultChannelTimeout,
		MaxChannelBankSize: DefaultMaxChannelBankSize,
	}
}

// IsCanyon reports whether the Canyon upgrade is active at the given
// base-layer block timestamp. Activation is keyed on the first base-layer
// block whose timestamp reaches CanyonTime.
func (c *RollupConfig) IsCanyon(timestamp uint64) bool {
	return c.CanyonTime != nil && timestamp >= *c.CanyonTime
}

// SystemConfig is the rollup system configuration derived from the base
// layer, handed to stages on reset.
type SystemConfig struct {
	// BatcherAddr is the account whose transactions carry channel frames.
	BatcherAddr common.Address
	// Overhead and Scalar parametrize the base-layer data fee.
	Overhead common.Hash
	Scalar   common.Hash
	// GasLimit is the L2 block gas limit.
	GasLimit uint64
}
