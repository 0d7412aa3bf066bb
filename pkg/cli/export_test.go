package cli

import (
	"context"
	"io"
)

func RunForTest(ctx context.Context, args []string, w io.Writer) error {
	return run(ctx, args, "test", w)
}

var GetIndexConfig = getIndexConfig
