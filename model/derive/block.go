package derive

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// BlockInfo is the minimal metadata of a base-layer (L1) block that the
// derivation pipeline tracks as its origin.
type BlockInfo struct {
	Hash       common.Hash
	Number     uint64
	ParentHash common.Hash
	// Time is the block timestamp in seconds.
	Time uint64
}

func (b BlockInfo) String() string {
	return fmt.Sprintf("%s:%d", b.Hash, b.Number)
}
