package aws

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// SQSMessage is a received message together with the handle needed to settle it.
type SQSMessage struct {
	ID            string
	Body          []byte
	ReceiptHandle string
	ReceiveCount  int
}

// SQSQueue wraps the SQS operations used by the broker driver.
type SQSQueue struct {
	client *sqs.Client

	// WaitSeconds is the long-poll duration for Receive.
	WaitSeconds int32
	// VisibilityTimeout hides a received message from other consumers until it is settled.
	VisibilityTimeout int32
}

// NewSQSQueue creates a queue wrapper from an SDK config.
func NewSQSQueue(cfg aws.Config) *SQSQueue {
	return &SQSQueue{
		client:            sqs.NewFromConfig(cfg),
		WaitSeconds:       20,
		VisibilityTimeout: 30,
	}
}

// EnsureQueue creates the named queue if it is missing and returns its URL.
// CreateQueue is idempotent for identical attributes.
func (q *SQSQueue) EnsureQueue(ctx context.Context, name string) (string, error) {
	out, err := q.client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(name)})
	if err == nil {
		return aws.ToString(out.QueueUrl), nil
	}

	var missing *types.QueueDoesNotExist
	if !errors.As(err, &missing) {
		return "", fmt.Errorf("failed to get queue URL: %w", err)
	}

	created, err := q.client.CreateQueue(ctx, &sqs.CreateQueueInput{QueueName: aws.String(name)})
	if err != nil {
		return "", fmt.Errorf("failed to create queue %s: %w", name, err)
	}
	return aws.ToString(created.QueueUrl), nil
}

// Send sends a single message to the queue
func (q *SQSQueue) Send(ctx context.Context, queueURL string, body []byte) error {
	_, err := q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// Receive long-polls for up to max messages.
func (q *SQSQueue) Receive(ctx context.Context, queueURL string, max int32) ([]SQSMessage, error) {
	if max < 1 {
		max = 1
	}
	if max > 10 {
		max = 10
	}

	result, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(queueURL),
		MaxNumberOfMessages: max,
		WaitTimeSeconds:     q.WaitSeconds,
		VisibilityTimeout:   q.VisibilityTimeout,
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{
			types.MessageSystemAttributeNameApproximateReceiveCount,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to receive messages: %w", err)
	}

	msgs := make([]SQSMessage, 0, len(result.Messages))
	for _, m := range result.Messages {
		if m.Body == nil {
			continue
		}
		count, _ := strconv.Atoi(m.Attributes[string(types.MessageSystemAttributeNameApproximateReceiveCount)])
		msgs = append(msgs, SQSMessage{
			ID:            aws.ToString(m.MessageId),
			Body:          []byte(*m.Body),
			ReceiptHandle: aws.ToString(m.ReceiptHandle),
			ReceiveCount:  count,
		})
	}
	return msgs, nil
}

// Delete removes a settled message.
func (q *SQSQueue) Delete(ctx context.Context, queueURL, receiptHandle string) error {
	if _, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	}); err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}

// Release makes a received message visible again immediately.
func (q *SQSQueue) Release(ctx context.Context, queueURL, receiptHandle string) error {
	if _, err := q.client.ChangeMessageVisibility(ctx, &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(queueURL),
		ReceiptHandle:     aws.String(receiptHandle),
		VisibilityTimeout: 0,
	}); err != nil {
		return fmt.Errorf("failed to release message: %w", err)
	}
	return nil
}
