package safe

import (
	"context"
	"io"
	"log/slog"

	"github.com/secmon-lab/storyweaver/pkg/utils/logging"
)

// Close closes c and logs the error instead of returning it. A nil closer is ignored.
func Close(ctx context.Context, c io.Closer) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		logging.From(ctx).Warn("close failed", slog.Any("error", err))
	}
}

// Write writes data to w, logging a failed or short write. A nil writer is ignored.
func Write(ctx context.Context, w io.Writer, data []byte) {
	if w == nil {
		return
	}
	n, err := w.Write(data)
	if err != nil {
		logging.From(ctx).Warn("write failed", slog.Any("error", err), slog.Int("written", n), slog.Int("size", len(data)))
	}
}
