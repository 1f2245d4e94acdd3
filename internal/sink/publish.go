package sink

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"nui/internal/config"
	"nui/internal/logger"
	"nui/pkg/nui"
)

// ErrNotConnected is returned by Connect when the server cannot be reached.
var ErrNotConnected = errors.New("nats: not connected")

const (
	defaultPublishConcurrency = 5
	flushTimeout              = 10 * time.Second
)

// Conn is the part of *nats.Conn the publisher uses.
type Conn interface {
	PublishMsg(m *nats.Msg) error
	FlushWithContext(ctx context.Context) error
}

// Publisher sends entries to a NATS subject. Each message carries the
// entry's integrity hash as Nats-Msg-Id so a JetStream stream drops
// duplicates of the same record.
type Publisher struct {
	conn        Conn
	subject     string
	concurrency int
	logger      *logger.Logger
	closeFn     func() error
	closed      bool
}

// PublishResult contains the results of a publish run.
type PublishResult struct {
	Errors    []error
	Published int
	Failed    int
}

// Connect dials the configured NATS server and returns a publisher that
// drains the connection on Close.
func Connect(cfg *config.PublishConfig, log *logger.Logger) (*Publisher, error) {
	nc, err := nats.Connect(cfg.NATSURL,
		nats.Name("nui-publisher"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(3),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNotConnected, cfg.NATSURL, err)
	}

	p := NewPublisher(nc, cfg, log)
	p.closeFn = nc.Drain

	return p, nil
}

// NewPublisher creates a publisher over an existing connection (useful for testing).
func NewPublisher(conn Conn, cfg *config.PublishConfig, log *logger.Logger) *Publisher {
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = defaultPublishConcurrency
	}

	return &Publisher{
		conn:        conn,
		subject:     cfg.Subject,
		concurrency: concurrency,
		logger:      log.With("component", "publisher", "subject", cfg.Subject),
	}
}

// Message builds the NATS message for e.
func (p *Publisher) Message(e *nui.Entry) (*nats.Msg, error) {
	data, err := e.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entry: %w", err)
	}

	msg := nats.NewMsg(p.subject)
	msg.Header.Set(nats.MsgIdHdr, e.IntegrityHash())
	msg.Data = data

	return msg, nil
}

// Write publishes a single entry.
func (p *Publisher) Write(e *nui.Entry) error {
	if p.closed {
		return ErrClosed
	}

	msg, err := p.Message(e)
	if err != nil {
		return err
	}

	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", e.IntegrityHash(), err)
	}

	return nil
}

// Publish sends entries with bounded concurrency and flushes the
// connection. Per-entry failures are counted in the result; the returned
// error is reserved for cancellation and flush failures.
func (p *Publisher) Publish(ctx context.Context, entries []*nui.Entry) (*PublishResult, error) {
	result := &PublishResult{}

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		sem = make(chan struct{}, p.concurrency)
	)

	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)

		go func(e *nui.Entry) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			err := ctx.Err()
			if err == nil {
				err = p.Write(e)
			}

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				p.logger.Error("publish failed", "integrity_hash", e.IntegrityHash(), "error", err)
				result.Errors = append(result.Errors, err)
				result.Failed++

				return
			}

			result.Published++
		}(entry)
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return result, err
	}

	flushCtx, cancel := context.WithTimeout(ctx, flushTimeout)
	defer cancel()

	if err := p.conn.FlushWithContext(flushCtx); err != nil {
		return result, fmt.Errorf("failed to flush: %w", err)
	}

	p.logger.Info("publish finished", "published", result.Published, "failed", result.Failed)

	return result, nil
}

// Close flushes pending messages and, for connections opened by Connect,
// drains the connection.
func (p *Publisher) Close() error {
	if p.closed {
		return ErrClosed
	}

	p.closed = true

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	err := p.conn.FlushWithContext(ctx)

	if p.closeFn != nil {
		err = errors.Join(err, p.closeFn())
	}

	return err
}
