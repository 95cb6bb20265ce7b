package logs

import (
	"context"
	"time"

	"github.com/monobilisim/logagent/common/types"
)

// LogFilter narrows search results after the store query. Store-side filters
// (keyword, level, range) live in query.Query; these are the ones a store
// cannot answer.
type LogFilter struct {
	Source string
	Fields map[string]string // metadata key=value, wildcards allowed
}

type OutputOptions struct {
	Ugly      bool
	Table     bool
	GetFields []string // Fields to extract and output directly
}

type searchFlags struct {
	keyword string
	level   string
	from    string
	to      string
	source  string
	fields  []string
	get     []string
	limit   int
	remote  bool
	ugly    bool
	output  string
	timeout time.Duration
}

type importFlags struct {
	publish   bool
	batchSize int
}

// Inserter is the write side of the log store.
type Inserter interface {
	Insert(ctx context.Context, entries ...types.LogEntry) error
}
