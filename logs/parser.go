package logs

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/monobilisim/logagent/common"
	"github.com/monobilisim/logagent/common/api/ingest"
	"github.com/monobilisim/logagent/common/types"
)

// openInput opens path for reading. "-" is stdin and an empty path is the
// agent's own log file.
func openInput(path string) (io.ReadCloser, string, error) {
	switch path {
	case "-":
		return io.NopCloser(os.Stdin), "stdin", nil
	case "":
		path = common.LogFilePath()
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, path, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	return file, path, nil
}

// importEntries reads JSON lines from r and hands them to write in batches of
// batchSize. Lines that are not valid records are skipped.
func importEntries(ctx context.Context, r io.Reader, batchSize int, write func(context.Context, []types.LogEntry) error) (read, skipped int, err error) {
	if batchSize <= 0 {
		batchSize = 100
	}

	batch := make([]types.LogEntry, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := write(ctx, batch); err != nil {
			return err
		}
		batch = make([]types.LogEntry, 0, batchSize)
		return nil
	}

	read, skipped, err = ingest.ReadLines(r, func(e types.LogEntry) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch = append(batch, e)
		if len(batch) >= batchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return read, skipped, err
	}
	return read, skipped, flush()
}

// storeWriter inserts batches directly.
func storeWriter(store Inserter) func(context.Context, []types.LogEntry) error {
	return func(ctx context.Context, batch []types.LogEntry) error {
		return store.Insert(ctx, batch...)
	}
}

// Publisher sends one entry to the ingest queue.
type Publisher interface {
	Publish(ctx context.Context, entry types.LogEntry) error
}

// publishWriter sends every entry of a batch to the ingest queue.
func publishWriter(pub Publisher) func(context.Context, []types.LogEntry) error {
	return func(ctx context.Context, batch []types.LogEntry) error {
		for _, e := range batch {
			if err := pub.Publish(ctx, e); err != nil {
				return err
			}
		}
		return nil
	}
}
