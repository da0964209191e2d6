package jobs

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Message is the body published for every job.
type Message struct {
	JobID   string `json:"job_id"`
	Attempt int    `json:"attempt,omitempty"`
}

// QueueNames returns the main, retry and dead-letter queue names for queue.
func QueueNames(queue string) (main, retry, dlq string) {
	return queue, queue + ".retry", queue + ".dlq"
}

// DeclareQueues declares the main queue with its retry and dead-letter
// companions. Publisher and worker both call it so either may start first.
func DeclareQueues(ch *amqp.Channel, queue string) error {
	mainQ, retryQ, dlqQ := QueueNames(queue)

	if _, err := ch.QueueDeclare(dlqQ, true, false, false, false, nil); err != nil {
		return err
	}

	// Retry queue: message TTL -> dead-letter back to main queue
	if _, err := ch.QueueDeclare(retryQ, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": mainQ,
	}); err != nil {
		return err
	}

	// Main queue: dead-letter to DLQ on reject/nack(requeue=false)
	_, err := ch.QueueDeclare(mainQ, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": dlqQ,
	})
	return err
}

type Publisher interface {
	PublishJob(ctx context.Context, jobID string) error
}

type RabbitPublisher struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

func NewRabbitPublisher(url, queue string) (*RabbitPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := DeclareQueues(ch, queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &RabbitPublisher{conn: conn, ch: ch, queue: queue}, nil
}

func (p *RabbitPublisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

func (p *RabbitPublisher) PublishJob(ctx context.Context, jobID string) error {
	return publish(ctx, p.ch, p.queue, Message{JobID: jobID}, 0)
}

// Retry republishes m to the retry queue with its attempt counter bumped; it
// returns to the main queue once delay has passed.
func Retry(ctx context.Context, ch *amqp.Channel, queue string, m Message, delay time.Duration) error {
	_, retryQ, _ := QueueNames(queue)
	m.Attempt++
	return publish(ctx, ch, retryQ, m, delay)
}

func publish(ctx context.Context, ch *amqp.Channel, routingKey string, m Message, ttl time.Duration) error {
	body, err := json.Marshal(m)
	if err != nil {
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
		Timestamp:    time.Now(),
	}
	if ttl > 0 {
		msg.Expiration = strconv.FormatInt(ttl.Milliseconds(), 10)
	}
	return ch.PublishWithContext(cctx,
		"",         // default exchange
		routingKey, // routing key = queue
		false,
		false,
		msg,
	)
}
