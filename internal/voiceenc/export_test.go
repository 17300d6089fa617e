package voiceenc

import (
	"context"

	"github.com/arung-agamani/roomd/internal/graph"
)

// TestTick exposes the unexported per-tick step to tests in this package's
// _test variant.
func (l *Loop) TestTick(ctx context.Context, frames []graph.StereoFrame, pcm []int16, opusBuf []byte) {
	l.tick(ctx, frames, pcm, opusBuf)
}
