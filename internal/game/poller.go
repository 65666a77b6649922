package game

import (
	"context"
	"log"
	"time"
)

const defaultPollInterval = 30 * time.Second

// Poller periodically refreshes story context and pushes each successful
// fetch to the session loop. Failed fetches are logged and skipped; the next
// tick tries again, so a flaky game service never blocks orchestration.
type Poller struct {
	client   Client
	party    string
	interval time.Duration
	onUpdate func(Context)
}

// NewPoller creates a context poller. A non-positive interval falls back to
// the default.
func NewPoller(client Client, party string, interval time.Duration, onUpdate func(Context)) *Poller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Poller{
		client:   client,
		party:    party,
		interval: interval,
		onUpdate: onUpdate,
	}
}

// Run fetches once immediately and then on every tick until ctx is done.
func (p *Poller) Run(ctx context.Context) error {
	if p.client == nil || p.onUpdate == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	p.refresh(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.refresh(ctx)
		}
	}
}

func (p *Poller) refresh(ctx context.Context) {
	fetched, err := p.client.FetchContext(ctx, p.party)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("game context refresh: %v", err)
		}
		return
	}
	p.onUpdate(fetched)
}
