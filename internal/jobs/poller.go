package jobs

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-slack-bot/internal/repo"
)

// ErrUnknownJob is returned when no consumer is registered for a name.
var ErrUnknownJob = errors.New("no consumer registered for job")

// Registry maps job names to consumers.
type Registry struct {
	mu        sync.RWMutex
	consumers map[string]Consumer
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{consumers: make(map[string]Consumer)}
}

// Register sets the consumer for name, replacing any previous one.
func (r *Registry) Register(name string, c Consumer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.consumers[name] = c
}

// Lookup returns the consumer for name.
func (r *Registry) Lookup(name string) (Consumer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.consumers[name]
	return c, ok
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.consumers))
	for n := range r.consumers {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// DrainNamed drains name with its registered consumer.
func DrainNamed(ctx context.Context, h *Handoff, reg *Registry, name string) (int, error) {
	c, ok := reg.Lookup(name)
	if !ok {
		return 0, ErrUnknownJob
	}
	return h.Drain(ctx, name, c)
}

// Poller drains every registered job on a fixed interval and purges expired
// dedup records. It stands in for an external scheduler.
type Poller struct {
	Handoff  *Handoff
	Registry *Registry
	Interval time.Duration
	Log      zerolog.Logger

	wg sync.WaitGroup
}

// Start launches the loop. It is a no-op when Interval is not positive.
func (p *Poller) Start(ctx context.Context) {
	if p.Interval <= 0 {
		p.Log.Info().Msg("job poller disabled")
		return
	}
	p.Log.Info().Dur("interval", p.Interval).Strs("jobs", p.Registry.Names()).Msg("job poller start")

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		t := time.NewTicker(p.Interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				p.Tick(ctx)
			}
		}
	}()
}

// Wait blocks until the loop started by Start has returned.
func (p *Poller) Wait() { p.wg.Wait() }

// Tick runs one drain pass over every registered job.
func (p *Poller) Tick(ctx context.Context) {
	for _, name := range p.Registry.Names() {
		n, err := DrainNamed(ctx, p.Handoff, p.Registry, name)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.Log.Warn().Err(err).Str("job", name).Int("consumed", n).Msg("drain failed")
			continue
		}
		if n > 0 {
			p.Log.Debug().Str("job", name).Int("consumed", n).Msg("drained")
		}
	}

	purged, err := repo.PurgeExpiredDedup(ctx, p.Handoff.DB, p.Handoff.now())
	if err != nil {
		p.Log.Warn().Err(err).Msg("purge expired dedup records")
	} else if purged > 0 {
		p.Log.Debug().Int64("purged", purged).Msg("expired dedup records removed")
	}
}
