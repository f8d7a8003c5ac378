package engine

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Notifier reports network reachability. Implementations push transitions
// (true = has network) on the subscription channel.
type Notifier interface {
	// Online returns the current reachability.
	Online() bool

	// Subscribe returns a channel of reachability transitions. The channel
	// is closed when the notifier shuts down.
	Subscribe() <-chan bool
}

// probeInterval is how often the prober re-checks reachability.
const probeInterval = 10 * time.Second

// probeTimeout bounds one reachability check.
const probeTimeout = 3 * time.Second

// Prober infers connectivity by polling an HTTP endpoint, for platforms
// without a native connectivity signal. It reports transitions only, not
// every probe result.
type Prober struct {
	url    string
	client *http.Client
	log    *zap.Logger

	mu     sync.Mutex
	online bool
	subs   []chan bool

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewProber builds a prober against url. It assumes online until the first
// probe says otherwise, so startup is never blocked on the network.
func NewProber(url string, log *zap.Logger) *Prober {
	if log == nil {
		log = zap.NewNop()
	}

	return &Prober{
		url:    url,
		client: &http.Client{Timeout: probeTimeout},
		log:    log,
		online: true,
		stop:   make(chan struct{}),
	}
}

// Start begins the probe loop.
func (p *Prober) Start(ctx context.Context) {
	p.wg.Add(1)

	go p.run(ctx)
}

// Stop ends the probe loop and closes all subscription channels.
func (p *Prober) Stop() {
	close(p.stop)
	p.wg.Wait()

	p.mu.Lock()
	subs := p.subs
	p.subs = nil
	p.mu.Unlock()

	for _, ch := range subs {
		close(ch)
	}
}

// Online returns the last probed reachability.
func (p *Prober) Online() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.online
}

// Subscribe returns a channel receiving reachability transitions.
func (p *Prober) Subscribe() <-chan bool {
	ch := make(chan bool, 1)

	p.mu.Lock()
	p.subs = append(p.subs, ch)
	p.mu.Unlock()

	return ch
}

func (p *Prober) run(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(probeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.check(ctx)
		}
	}
}

// check probes once and fans out a transition if reachability flipped.
func (p *Prober) check(ctx context.Context) {
	reqCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodHead, p.url, nil)
	if err != nil {
		p.log.Warn("build probe request", zap.Error(err))

		return
	}

	resp, err := p.client.Do(req)

	online := err == nil
	if resp != nil {
		_ = resp.Body.Close()
	}

	p.mu.Lock()

	if online == p.online {
		p.mu.Unlock()

		return
	}

	p.online = online
	subs := make([]chan bool, len(p.subs))
	copy(subs, p.subs)
	p.mu.Unlock()

	p.log.Info("connectivity changed", zap.Bool("online", online))

	for _, ch := range subs {
		select {
		case ch <- online:
		default:
			// Subscriber is behind; it will re-read Online() anyway.
		}
	}
}
