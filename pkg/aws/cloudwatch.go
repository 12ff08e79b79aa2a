package aws

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
)

const (
	logFlushInterval = 2 * time.Second
	logBatchSize     = 500
	// logBufferLimit caps memory while CloudWatch is unreachable; older
	// lines are dropped first.
	logBufferLimit = 10000
	logPutTimeout  = 5 * time.Second
)

type logEventsAPI interface {
	PutLogEvents(ctx context.Context, in *cloudwatchlogs.PutLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutLogEventsOutput, error)
}

// CloudWatchLogsClient is an io.Writer for a zap core. Write only buffers;
// a background goroutine ships batches every logFlushInterval or once
// logBatchSize lines are waiting. Sync flushes immediately.
type CloudWatchLogsClient struct {
	api           logEventsAPI
	logGroupName  string
	logStreamName string

	mu      sync.Mutex
	pending []types.InputLogEvent
	dropped int

	flushMu sync.Mutex // serializes PutLogEvents calls

	kick      chan struct{}
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// NewCloudWatchLogsClient creates the log group (if needed) and a fresh stream
// named after the service, then starts the flusher.
func NewCloudWatchLogsClient(ctx context.Context, serviceName, logGroupName string) (*CloudWatchLogsClient, error) {
	cfg, err := LoadAWSConfig(ctx)
	if err != nil {
		return nil, err
	}
	if logGroupName == "" {
		logGroupName = "/shopflow/services"
	}

	api := cloudwatchlogs.NewFromConfig(cfg)
	streamName := fmt.Sprintf("%s-%d", serviceName, time.Now().Unix())
	if err := ensureLogStream(ctx, api, logGroupName, streamName); err != nil {
		return nil, err
	}
	return newCloudWatchLogsClient(api, logGroupName, streamName, logFlushInterval), nil
}

func ensureLogStream(ctx context.Context, api *cloudwatchlogs.Client, group, stream string) error {
	_, err := api.CreateLogGroup(ctx, &cloudwatchlogs.CreateLogGroupInput{LogGroupName: aws.String(group)})
	var exists *types.ResourceAlreadyExistsException
	if err != nil && !errors.As(err, &exists) {
		return fmt.Errorf("create log group %s: %w", group, err)
	}
	if _, err := api.PutRetentionPolicy(ctx, &cloudwatchlogs.PutRetentionPolicyInput{
		LogGroupName:    aws.String(group),
		RetentionInDays: aws.Int32(30),
	}); err != nil {
		return fmt.Errorf("set retention on %s: %w", group, err)
	}
	if _, err := api.CreateLogStream(ctx, &cloudwatchlogs.CreateLogStreamInput{
		LogGroupName:  aws.String(group),
		LogStreamName: aws.String(stream),
	}); err != nil {
		return fmt.Errorf("create log stream %s: %w", stream, err)
	}
	return nil
}

func newCloudWatchLogsClient(api logEventsAPI, group, stream string, interval time.Duration) *CloudWatchLogsClient {
	c := &CloudWatchLogsClient{
		api:           api,
		logGroupName:  group,
		logStreamName: stream,
		kick:          make(chan struct{}, 1),
		done:          make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	go c.loop(interval)
	return c
}

func (c *CloudWatchLogsClient) loop(interval time.Duration) {
	defer close(c.stopped)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
		case <-c.kick:
		case <-c.done:
			c.flush()
			return
		}
		c.flush()
	}
}

// Write never blocks on the network. zap reuses p, so it is copied.
func (c *CloudWatchLogsClient) Write(p []byte) (int, error) {
	event := types.InputLogEvent{
		Message:   aws.String(string(p)),
		Timestamp: aws.Int64(time.Now().UnixMilli()),
	}

	c.mu.Lock()
	if len(c.pending) >= logBufferLimit {
		c.pending = c.pending[1:]
		c.dropped++
	}
	c.pending = append(c.pending, event)
	full := len(c.pending) >= logBatchSize
	c.mu.Unlock()

	if full {
		select {
		case c.kick <- struct{}{}:
		default:
		}
	}
	return len(p), nil
}

// Sync satisfies zapcore.WriteSyncer by shipping everything buffered so far.
func (c *CloudWatchLogsClient) Sync() error {
	c.flush()
	return nil
}

// Close flushes what is buffered and stops the flusher.
func (c *CloudWatchLogsClient) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	<-c.stopped
	return nil
}

func (c *CloudWatchLogsClient) flush() {
	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	for {
		c.mu.Lock()
		n := min(len(c.pending), logBatchSize)
		batch := append([]types.InputLogEvent(nil), c.pending[:n]...)
		c.pending = c.pending[n:]
		dropped := c.dropped
		c.dropped = 0
		c.mu.Unlock()

		if dropped > 0 {
			fmt.Fprintf(os.Stderr, "CloudWatch buffer full, dropped %d log lines\n", dropped)
		}
		if len(batch) == 0 {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), logPutTimeout)
		_, err := c.api.PutLogEvents(ctx, &cloudwatchlogs.PutLogEventsInput{
			LogGroupName:  aws.String(c.logGroupName),
			LogStreamName: aws.String(c.logStreamName),
			LogEvents:     batch,
		})
		cancel()
		if err != nil {
			// Local console logging is unaffected, so the batch is dropped.
			fmt.Fprintf(os.Stderr, "CloudWatch write error, %d lines lost: %v\n", len(batch), err)
			return
		}
	}
}
