package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue/queueerror"
	"github.com/agentdock/backend/internal/core/ports"
)

// Azure caps a single dequeue at 32 messages.
const azureMaxBatch = 32

// AzureQueue is a MessageQueue over an Azure Storage queue.
type AzureQueue struct {
	name   string
	client *azqueue.QueueClient
}

func NewAzureQueue(ctx context.Context, connectionString, name string) (*AzureQueue, error) {
	client, err := azqueue.NewQueueClientFromConnectionString(connectionString, name, nil)
	if err != nil {
		return nil, fmt.Errorf("azure queue %s: %w", name, err)
	}
	if _, err := client.Create(ctx, nil); err != nil && !queueerror.HasCode(err, queueerror.QueueAlreadyExists) {
		return nil, fmt.Errorf("azure queue %s: create: %w", name, err)
	}
	return &AzureQueue{name: name, client: client}, nil
}

func (q *AzureQueue) Name() string { return q.name }

func (q *AzureQueue) Send(ctx context.Context, body string) error {
	if _, err := q.client.EnqueueMessage(ctx, body, nil); err != nil {
		return fmt.Errorf("azure queue %s: enqueue: %w", q.name, err)
	}
	return nil
}

func (q *AzureQueue) Receive(ctx context.Context, max int, visibility time.Duration) ([]ports.QueueMessage, error) {
	if max <= 0 {
		max = 1
	}
	if max > azureMaxBatch {
		max = azureMaxBatch
	}
	n := int32(max)
	// the service requires a visibility timeout of at least one second
	vis := int32(visibility / time.Second)
	if vis < 1 {
		vis = 1
	}

	resp, err := q.client.DequeueMessages(ctx, &azqueue.DequeueMessagesOptions{
		NumberOfMessages:  &n,
		VisibilityTimeout: &vis,
	})
	if err != nil {
		return nil, fmt.Errorf("azure queue %s: dequeue: %w", q.name, err)
	}

	out := make([]ports.QueueMessage, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		if m == nil || m.MessageID == nil || m.PopReceipt == nil {
			continue
		}
		msg := ports.QueueMessage{ID: *m.MessageID, PopReceipt: *m.PopReceipt}
		if m.MessageText != nil {
			msg.Body = *m.MessageText
		}
		if m.DequeueCount != nil {
			msg.DequeueCount = int(*m.DequeueCount)
		}
		out = append(out, msg)
	}
	return out, nil
}

func (q *AzureQueue) Delete(ctx context.Context, msg ports.QueueMessage) error {
	if _, err := q.client.DeleteMessage(ctx, msg.ID, msg.PopReceipt, nil); err != nil {
		return fmt.Errorf("azure queue %s: delete %s: %w", q.name, msg.ID, err)
	}
	return nil
}
