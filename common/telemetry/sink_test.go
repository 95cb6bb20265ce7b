package telemetry

import (
	"errors"
	"sync"
	"testing"

	"github.com/monobilisim/logagent/common/types"
	"github.com/stretchr/testify/assert"
)

func TestCounter_CountsPerKind(t *testing.T) {
	c := NewCounter("test")

	c.Report(types.KindStoreTimeout, errors.New("deadline"))
	c.Report(types.KindStoreTimeout, errors.New("deadline"))
	c.Report(types.KindAssistantUnavailable, errors.New("down"))

	assert.Equal(t, int64(2), c.Count(types.KindStoreTimeout))
	assert.Equal(t, int64(1), c.Count(types.KindAssistantUnavailable))
	assert.Equal(t, int64(0), c.Count(types.KindMalformedIntent))
	assert.Equal(t, map[string]int64{
		"store_timeout":         2,
		"assistant_unavailable": 1,
	}, c.Snapshot())
}

func TestCounter_ConcurrentReports(t *testing.T) {
	c := NewCounter("test")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Report(types.KindStoreUnavailable, nil)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), c.Count(types.KindStoreUnavailable))
}
