package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ReplyPoller checks the inquiry inbox on a fixed interval. Each tick is
// independent: a failed check logs and waits for the next tick.
type ReplyPoller struct {
	checker  ReplyChecker
	interval time.Duration
	timeout  time.Duration

	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

func NewReplyPoller(checker ReplyChecker, interval time.Duration) *ReplyPoller {
	if interval <= 0 {
		interval = 2 * time.Minute
	}
	return &ReplyPoller{
		checker:  checker,
		interval: interval,
		timeout:  time.Minute,
		stop:     make(chan struct{}),
	}
}

func (p *ReplyPoller) Start() {
	p.wg.Add(1)
	go p.loop()
}

func (p *ReplyPoller) Stop() {
	p.once.Do(func() { close(p.stop) })
	p.wg.Wait()
}

func (p *ReplyPoller) loop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.checkOnce()
		}
	}
}

func (p *ReplyPoller) checkOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	n, err := p.checker.CheckReplies(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "reply check failed", "error", err)
		return
	}
	if n > 0 {
		slog.InfoContext(ctx, "processed inquiry replies", "count", n)
	}
}
