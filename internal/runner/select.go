package runner

import (
	"errors"
	"fmt"

	"github.com/chojs23/runme/internal/domain"
)

// ErrUnknownBlock is returned when a selector matches no block
var ErrUnknownBlock = errors.New("unknown block")

// Select restricts blocks to the one addressed by key (id or name). An
// empty key selects every block; non-runnable ones are reported as skipped
// when run. An unmatched id-shaped key is reported as out of range.
func Select(blocks []*domain.Block, key string) ([]*domain.Block, error) {
	if key == "" {
		return blocks, nil
	}
	for _, b := range blocks {
		if b.Matches(key) {
			return []*domain.Block{b}, nil
		}
	}
	if _, err := domain.ParseBlockID(key); err == nil {
		return nil, fmt.Errorf("%w: %s is out of range (document has %d blocks)", ErrUnknownBlock, key, len(blocks))
	}
	return nil, fmt.Errorf("%w: %q (use `runme list` to see available blocks)", ErrUnknownBlock, key)
}
