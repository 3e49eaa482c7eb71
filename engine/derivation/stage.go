package derivation

import (
	"context"
	"errors"

	"github.com/opstack/derive-go/model/derive"
)

var (
	// ErrEOF signals that a stage has no output to give until more upstream
	// input arrives. It is an expected condition, not a fault.
	ErrEOF = errors.New("end of data")

	// ErrNotEnoughData signals that a stage made progress ingesting input
	// but has no output yet; the caller should drive the stage again.
	ErrNotEnoughData = errors.New("not enough data")
)

// FrameSource is the upstream collaborator supplying frames on demand,
// typically the tail of a multi-stage pipeline over base-layer transaction
// data.
type FrameSource interface {
	// Origin returns the base-layer block the pipeline currently derives
	// from, or nil if traversal has not established one yet.
	Origin() *derive.BlockInfo

	// NextFrame returns the next frame. It returns ErrEOF when no frame is
	// available right now; any other error is fatal and propagated.
	NextFrame(ctx context.Context) (derive.Frame, error)
}

// ResettableStage is a pipeline stage that can be re-derived from scratch
// after a base-layer reorg. Reset reports ErrEOF by convention, so a reset
// cascades deterministically through the pipeline.
type ResettableStage interface {
	Reset(ctx context.Context, base derive.BlockInfo, cfg derive.SystemConfig) error
}
