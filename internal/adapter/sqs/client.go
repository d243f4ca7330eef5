package sqs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"kontext/apps/processor/internal/pipeline"
	"kontext/apps/processor/internal/queue"
)

// API is the subset of *sqs.Client the adapter uses.
type API interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

type Options struct {
	Region    string
	AccessKey string
	SecretKey string
	// Endpoint overrides the service endpoint, e.g. for LocalStack.
	Endpoint string
}

type Client struct {
	api API
}

func NewClient(api API) *Client {
	return &Client{api: api}
}

// New builds a client from the default AWS credential chain, optionally
// overridden by static keys.
func New(ctx context.Context, opts Options) (*Client, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(opts.Region)}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	api := sqs.NewFromConfig(cfg, func(o *sqs.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})
	return NewClient(api), nil
}

func (c *Client) Receive(ctx context.Context, queueURL string, maxMessages, waitSeconds int) ([]queue.Record, error) {
	out, err := c.api.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(queueURL),
		MaxNumberOfMessages: int32(maxMessages),
		WaitTimeSeconds:     int32(waitSeconds),
	})
	if err != nil {
		return nil, fmt.Errorf("receiving from %s: %w", queueURL, err)
	}

	records := make([]queue.Record, 0, len(out.Messages))
	for _, m := range out.Messages {
		records = append(records, queue.Record{
			ID:            aws.ToString(m.MessageId),
			Body:          []byte(aws.ToString(m.Body)),
			ReceiptHandle: aws.ToString(m.ReceiptHandle),
		})
	}
	return records, nil
}

func (c *Client) Delete(ctx context.Context, queueURL, receiptHandle string) error {
	_, err := c.api.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return fmt.Errorf("deleting message from %s: %w", queueURL, err)
	}
	return nil
}

// Send enqueues body and returns the assigned message id.
func (c *Client) Send(ctx context.Context, queueURL string, body []byte) (string, error) {
	out, err := c.api.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return "", pipeline.QueueMessage(fmt.Sprintf("Failed to send message: %v", err), err)
	}

	id := aws.ToString(out.MessageId)
	slog.DebugContext(ctx, "message sent", "queue_url", queueURL, "message_id", id)
	return id, nil
}

// QueueSender sends to one fixed queue.
type QueueSender struct {
	client   *Client
	queueURL string
}

func (c *Client) Sender(queueURL string) *QueueSender {
	return &QueueSender{client: c, queueURL: queueURL}
}

func (s *QueueSender) Send(ctx context.Context, body []byte) (string, error) {
	return s.client.Send(ctx, s.queueURL, body)
}
