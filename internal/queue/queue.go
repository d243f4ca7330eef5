package queue

import "context"

// Record is one inbound delivery. ReceiptHandle is only set by transports
// that acknowledge by explicit delete.
type Record struct {
	ID            string
	Body          []byte
	ReceiptHandle string
}

// Disposition tells a push transport what to do with a handled delivery.
type Disposition int

const (
	Ack Disposition = iota
	Requeue
	// Reject drops the delivery, or dead-letters it where the broker has a
	// dead-letter exchange.
	Reject
)

func (d Disposition) String() string {
	switch d {
	case Ack:
		return "ack"
	case Requeue:
		return "requeue"
	case Reject:
		return "reject"
	}
	return "unknown"
}

// Publisher is satisfied by *nsq.Producer and the AMQP connection.
type Publisher interface {
	Publish(topic string, body []byte) error
}

// TopicSender sends every body to one fixed topic or queue.
type TopicSender struct {
	pub   Publisher
	topic string
}

func NewTopicSender(pub Publisher, topic string) *TopicSender {
	return &TopicSender{pub: pub, topic: topic}
}

// Send publishes body. Push brokers assign no id at publish time, so the
// returned message id is empty.
func (s *TopicSender) Send(ctx context.Context, body []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "", s.pub.Publish(s.topic, body)
}
