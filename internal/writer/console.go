package writer

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rickgao/bookfeed/internal/model"
)

// Console renders quotes as one line per source. Sources that have not
// produced data yet render as "no data"; sources reporting stale data
// (last known top while disconnected) are marked.
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsole creates a console writer on out, typically os.Stdout.
func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

// Name identifies the sink.
func (c *Console) Name() string {
	return "console"
}

// Write renders the batch. The whole batch is written under one lock so
// cycles from concurrent callers never interleave line-by-line.
func (c *Console) Write(ctx context.Context, quotes []model.Quote) error {
	var b strings.Builder
	for _, q := range quotes {
		b.WriteString(formatQuote(q))
		b.WriteByte('\n')
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := io.WriteString(c.out, b.String())
	return err
}

// Close is a no-op; the console writer does not own its io.Writer.
func (c *Console) Close() error {
	return nil
}

func formatQuote(q model.Quote) string {
	if !q.HasData {
		return fmt.Sprintf("%-12s no data", q.Source)
	}

	line := fmt.Sprintf("%-12s bid %s  ask %s  at %s",
		q.Source,
		formatSide(q.Bid),
		formatSide(q.Ask),
		q.UpdatedAt.Format("15:04:05.000"),
	)
	if !q.Live {
		line += "  (stale)"
	}
	return line
}

// formatSide renders "price (size)", or "-" for an empty side.
func formatSide(l *model.PriceLevel) string {
	if l == nil {
		return "-"
	}
	return fmt.Sprintf("%s (%s)", l.Price.String(), l.Size.String())
}
