package delivery

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

type Sender interface {
	Send(ctx context.Context, toast Toast) error
}

// Publisher fans toasts out to every registered sender. Each sender is
// retried independently in the background so a slow relay never holds up the
// action that produced the toast.
type Publisher struct {
	mu         sync.RWMutex
	senders    map[string]Sender
	logger     *slog.Logger
	maxRetries int
	baseDelay  time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPublisher(logger *slog.Logger, maxRetries int, baseDelay time.Duration) *Publisher {
	if maxRetries < 1 {
		maxRetries = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Publisher{
		senders:    make(map[string]Sender),
		logger:     logger,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (p *Publisher) RegisterSender(name string, sender Sender) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.senders[name] = sender
}

func (p *Publisher) DeregisterSender(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.senders, name)
}

func (p *Publisher) HasSender(name string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.senders[name]
	return ok
}

func (p *Publisher) Senders() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.senders))
	for name := range p.senders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Notify implements the dispatcher's toast sink.
func (p *Publisher) Notify(toast Toast) {
	p.Publish(toast)
}

func (p *Publisher) Publish(toast Toast) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if len(p.senders) == 0 {
		p.logger.Debug("No senders registered, dropping toast", "title", toast.Title)
		return
	}

	for name, sender := range p.senders {
		p.wg.Add(1)
		go func(name string, sender Sender) {
			defer p.wg.Done()
			_ = p.sendWithRetry(name, sender, toast) //nolint:errcheck
		}(name, sender)
	}
}

// Close stops pending retries and waits for in-progress sends.
func (p *Publisher) Close() {
	p.cancel()
	p.wg.Wait()
}

func (p *Publisher) sendWithRetry(name string, sender Sender, toast Toast) error {
	var lastErr error
	for attempt := 0; attempt < p.maxRetries; attempt++ {
		err := sender.Send(p.ctx, toast)
		if err == nil {
			if attempt > 0 {
				p.logger.Info("Toast relayed after retry", "sender", name, "attempt", attempt+1)
			}
			return nil
		}

		lastErr = err

		if IsPermanent(err) {
			p.logger.Error("Permanent error, not retrying", "sender", name, "error", err)
			return err
		}

		if attempt < p.maxRetries-1 {
			delay := p.baseDelay * time.Duration(1<<uint(attempt))
			p.logger.Warn("Failed to relay toast, retrying", "sender", name, "attempt", attempt+1, "error", err, "retryIn", delay)
			select {
			case <-time.After(delay):
			case <-p.ctx.Done():
				return p.ctx.Err()
			}
		}
	}

	p.logger.Error("Failed to relay toast after retries", "sender", name, "attempts", p.maxRetries, "error", lastErr)
	return lastErr
}
