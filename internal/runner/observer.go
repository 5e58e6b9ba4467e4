package runner

import "github.com/chojs23/runme/internal/domain"

// Observer receives live events in execution order. Streaming reporters
// print from these; the coordinator never buffers across blocks.
type Observer interface {
	BlockStarted(b *domain.Block, sandbox string)
	LineCompleted(b *domain.Block, r domain.LineResult)
	BlockCompleted(b *domain.Block, r *domain.BlockResult)
}

// NoopObserver ignores all events
type NoopObserver struct{}

func (NoopObserver) BlockStarted(*domain.Block, string) {}
func (NoopObserver) LineCompleted(*domain.Block, domain.LineResult) {}
func (NoopObserver) BlockCompleted(*domain.Block, *domain.BlockResult) {}
