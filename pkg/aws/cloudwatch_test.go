package aws

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogs struct {
	mu      sync.Mutex
	batches [][]string
	entered chan struct{}
	release chan struct{}
}

func (r *recordingLogs) PutLogEvents(_ context.Context, in *cloudwatchlogs.PutLogEventsInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutLogEventsOutput, error) {
	if r.entered != nil {
		r.entered <- struct{}{}
		<-r.release
	}
	lines := make([]string, 0, len(in.LogEvents))
	for _, e := range in.LogEvents {
		lines = append(lines, *e.Message)
	}
	r.mu.Lock()
	r.batches = append(r.batches, lines)
	r.mu.Unlock()
	return &cloudwatchlogs.PutLogEventsOutput{}, nil
}

func (r *recordingLogs) snapshot() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.batches...)
}

func TestCloudWatchLogs_WriteBuffersUntilSync(t *testing.T) {
	api := &recordingLogs{}
	c := newCloudWatchLogsClient(api, "/shopflow/services", "test", time.Hour)
	defer c.Close()

	buf := []byte("first")
	_, err := c.Write(buf)
	require.NoError(t, err)
	copy(buf, "XXXXX")
	_, err = c.Write([]byte("second"))
	require.NoError(t, err)
	assert.Empty(t, api.snapshot(), "nothing is shipped on Write")

	require.NoError(t, c.Sync())
	assert.Equal(t, [][]string{{"first", "second"}}, api.snapshot())
}

func TestCloudWatchLogs_FlushesFullBatch(t *testing.T) {
	api := &recordingLogs{}
	c := newCloudWatchLogsClient(api, "/shopflow/services", "test", time.Hour)
	defer c.Close()

	for i := 0; i < logBatchSize; i++ {
		_, _ = c.Write([]byte(fmt.Sprintf("line %d", i)))
	}
	require.Eventually(t, func() bool { return len(api.snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Len(t, api.snapshot()[0], logBatchSize)
}

func TestCloudWatchLogs_WriteDoesNotWaitForSlowFlush(t *testing.T) {
	api := &recordingLogs{entered: make(chan struct{}, 1), release: make(chan struct{})}
	c := newCloudWatchLogsClient(api, "/shopflow/services", "test", time.Hour)

	_, _ = c.Write([]byte("before"))
	go func() { _ = c.Sync() }()
	<-api.entered

	written := make(chan struct{})
	go func() {
		_, _ = c.Write([]byte("during"))
		close(written)
	}()
	select {
	case <-written:
	case <-time.After(time.Second):
		t.Fatal("Write blocked behind PutLogEvents")
	}

	close(api.release)
	require.NoError(t, c.Close())

	var all []string
	for _, b := range api.snapshot() {
		all = append(all, b...)
	}
	assert.Equal(t, []string{"before", "during"}, all)
}
