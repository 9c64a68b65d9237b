package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/linesmerrill/region-chat-api/logging"
	"github.com/linesmerrill/region-chat-api/models"
)

// RoutingKeyPrefix prefixes every session routing key
const RoutingKeyPrefix = "groupchat.session."

const maxDialDelay = 60 * time.Second

// DialWithRetry connects to the broker with exponential backoff
func DialWithRetry(ctx context.Context, url string, attempts int, delay time.Duration) (*amqp.Connection, error) {
	var lastErr error
	for i := 1; i <= attempts; i++ {
		conn, err := amqp.Dial(url)
		if err == nil {
			if i > 1 {
				zap.S().Infow("amqp connected", "attempt", i)
			}
			return conn, nil
		}
		lastErr = err

		sleep := delay * time.Duration(math.Pow(2, float64(i-1)))
		if sleep > maxDialDelay {
			sleep = maxDialDelay
		}
		zap.S().Warnw("amqp dial failed", "attempt", i, "sleep", sleep, "error", err)

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, errors.New("dial cancelled: " + ctx.Err().Error())
		case <-timer.C:
		}
	}
	return nil, fmt.Errorf("failed to connect to amqp after %d attempts: %w", attempts, lastErr)
}

func routingKey(msg models.RoutedMessage) string {
	return RoutingKeyPrefix + strconv.Itoa(msg.DialogCode())
}

// AMQPTransfer publishes forwarded messages to a topic exchange every shard
// listens on
type AMQPTransfer struct {
	conn         *amqp.Connection
	exchange     string
	regionHandle uint64
}

// NewAMQPTransfer declares the exchange and returns a transfer publishing to it
func NewAMQPTransfer(conn *amqp.Connection, exchange string, regionHandle uint64) (*AMQPTransfer, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	defer ch.Close()
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, err
	}
	return &AMQPTransfer{conn: conn, exchange: exchange, regionHandle: regionHandle}, nil
}

// Send publishes one envelope addressed to every recipient
func (t *AMQPTransfer) Send(ctx context.Context, msg models.RoutedMessage, recipients []uuid.UUID) error {
	ch, err := t.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	env := newEnvelope(t.regionHandle, msg, recipients)
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return ch.PublishWithContext(ctx, t.exchange, routingKey(msg), false, false, amqp.Publishing{
		ContentType: "application/json",
		MessageId:   env.Meta.ID,
		AppId:       env.Meta.Producer,
		Type:        env.Meta.Type,
		Timestamp:   env.Meta.Time,
		Body:        body,
	})
}

// Deliverer receives messages forwarded by other shards
type Deliverer interface {
	DeliverForwarded(msg models.RoutedMessage, recipients []uuid.UUID)
}

// AMQPConsumer reads forwarded messages from the exchange and hands them to
// a Deliverer. Each shard owns an exclusive queue bound to every session
// routing key. Messages this shard published itself are acknowledged and
// skipped.
type AMQPConsumer struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	queue    string
	producer string
	target   Deliverer
	workers  int
	log      *zap.SugaredLogger

	msgs chan amqp.Delivery
	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// NewAMQPConsumer opens a channel and declares the exchange
func NewAMQPConsumer(conn *amqp.Connection, exchange string, regionHandle uint64, target Deliverer, workers int) (*AMQPConsumer, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, err
	}
	if workers <= 0 {
		workers = 1
	}
	return &AMQPConsumer{
		conn:     conn,
		ch:       ch,
		exchange: exchange,
		queue:    fmt.Sprintf("%s.%d", exchange, regionHandle),
		producer: strconv.FormatUint(regionHandle, 10),
		target:   target,
		workers:  workers,
		log:      logging.New("amqp-consumer"),
		msgs:     make(chan amqp.Delivery, workers*10),
		done:     make(chan struct{}),
	}, nil
}

// Start declares and binds the shard's queue and begins consuming
func (c *AMQPConsumer) Start() error {
	var startErr error
	c.once.Do(func() {
		if err := c.ch.Qos(c.workers*10, 0, false); err != nil {
			startErr = err
			return
		}
		q, err := c.ch.QueueDeclare(c.queue, false, true, true, false, nil)
		if err != nil {
			startErr = err
			return
		}
		if err := c.ch.QueueBind(q.Name, RoutingKeyPrefix+"#", c.exchange, false, nil); err != nil {
			startErr = err
			return
		}
		deliveries, err := c.ch.Consume(q.Name, "", false, true, false, false, nil)
		if err != nil {
			startErr = err
			return
		}

		go func() {
			defer close(c.msgs)
			for {
				select {
				case <-c.done:
					return
				case d, ok := <-deliveries:
					if !ok {
						return
					}
					c.msgs <- d
				}
			}
		}()
		for i := 0; i < c.workers; i++ {
			c.wg.Add(1)
			go c.work()
		}
		c.log.Infow("consumer started", "queue", q.Name, "workers", c.workers)
	})
	return startErr
}

func (c *AMQPConsumer) work() {
	defer c.wg.Done()
	for d := range c.msgs {
		if err := c.handle(d.Body); err != nil {
			c.log.Errorw("dropping undecodable forward", "routingKey", d.RoutingKey, "error", err)
			_ = d.Nack(false, false)
			continue
		}
		_ = d.Ack(false)
	}
}

func (c *AMQPConsumer) handle(body []byte) error {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return err
	}
	if env.Meta.Type != EventType {
		return fmt.Errorf("unexpected envelope type %q", env.Meta.Type)
	}
	if c.producer != "" && env.Meta.Producer == c.producer {
		// recipients connected here were served before publishing
		return nil
	}
	c.target.DeliverForwarded(env.Data.Message, env.Data.Recipients)
	return nil
}

// Close stops consuming and waits for in-flight deliveries
func (c *AMQPConsumer) Close() error {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
	err := c.ch.Close()
	c.wg.Wait()
	return err
}
