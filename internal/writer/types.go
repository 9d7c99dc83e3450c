package writer

import (
	"context"

	"github.com/rickgao/bookfeed/internal/model"
)

// Writer delivers one batch of quotes to a sink. Write is called with
// the full projection of a poll cycle and must honor ctx cancellation;
// it never mutates the quotes.
type Writer interface {
	// Name identifies the sink in logs and error reports.
	Name() string

	// Write delivers the batch.
	Write(ctx context.Context, quotes []model.Quote) error

	// Close releases the sink's resources.
	Close() error
}
