package derive

import (
	"encoding/hex"
)

// ChannelIDLength is the fixed byte length of a channel identifier.
const ChannelIDLength = 16

// ChannelID is an opaque identifier for a channel, chosen by the data
// producer. It carries no ordering semantics beyond equality and is usable
// as a map key.
type ChannelID [ChannelIDLength]byte

func (id ChannelID) String() string {
	return hex.EncodeToString(id[:])
}
