package realtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"transitnow/internal/metrics"
)

const maxFeedBytes = 64 << 20

// VehicleSink receives every committed vehicle snapshot.
type VehicleSink interface {
	PublishVehicles(vehicles []Vehicle) error
}

// PollerConfig configures the realtime poll loop. An empty URL disables
// that feed.
type PollerConfig struct {
	VehiclePositionsURL string
	TripUpdatesURL      string
	Interval            time.Duration
	Timeout             time.Duration
}

// Poller fetches both realtime feeds on a fixed interval and commits the
// decoded snapshots to a Store. Starting a cycle cancels the one still in
// flight, and results from a superseded cycle are discarded.
type Poller struct {
	cfg     PollerConfig
	store   *Store
	client  *http.Client
	metrics *metrics.Collector
	sink    VehicleSink
	logger  *slog.Logger

	gen    atomic.Uint64
	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPoller creates a Poller writing to store.
func NewPoller(cfg PollerConfig, store *Store, m *metrics.Collector, logger *slog.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * cfg.Interval
	}
	return &Poller{
		cfg:     cfg,
		store:   store,
		client:  &http.Client{},
		metrics: m,
		logger:  logger,
	}
}

// PublishTo registers a sink for committed vehicle snapshots. Call before Start.
func (p *Poller) PublishTo(sink VehicleSink) {
	p.sink = sink
}

// Start polls until ctx is cancelled. The first cycle begins immediately.
func (p *Poller) Start(ctx context.Context) {
	p.launch(ctx)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.launch(ctx)
		case <-ctx.Done():
			p.wg.Wait()
			p.logger.Info("realtime poller stopped")
			return
		}
	}
}

// Poll runs one cycle and waits for it. It returns the first feed error.
func (p *Poller) Poll(ctx context.Context) error {
	cctx, gen := p.begin(ctx)
	defer p.wg.Done()
	return p.run(cctx, gen)
}

func (p *Poller) launch(ctx context.Context) {
	cctx, gen := p.begin(ctx)
	go func() {
		defer p.wg.Done()
		_ = p.run(cctx, gen)
	}()
}

// begin cancels the cycle in flight and opens a new generation.
func (p *Poller) begin(ctx context.Context) (context.Context, uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		p.cancel()
	}
	cctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	p.cancel = cancel
	p.wg.Add(1)
	p.metrics.PollStarted()
	return cctx, p.gen.Add(1)
}

func (p *Poller) current(gen uint64) bool {
	return p.gen.Load() == gen
}

func (p *Poller) run(ctx context.Context, gen uint64) error {
	var g errgroup.Group
	if p.cfg.VehiclePositionsURL != "" {
		g.Go(func() error { return p.refreshVehicles(ctx, gen) })
	}
	if p.cfg.TripUpdatesURL != "" {
		g.Go(func() error { return p.refreshTripUpdates(ctx, gen) })
	}
	return g.Wait()
}

func (p *Poller) refreshVehicles(ctx context.Context, gen uint64) error {
	start := time.Now()
	body, err := p.fetch(ctx, FeedVehiclePositions, p.cfg.VehiclePositionsURL)
	var vehicles []Vehicle
	var feedTime time.Time
	if err == nil {
		vehicles, feedTime, err = DecodeVehiclePositions(body)
	}
	p.metrics.FeedFetched(FeedVehiclePositions, time.Since(start))
	if err != nil {
		return p.failed(ctx, gen, FeedVehiclePositions, err)
	}

	snap := &VehicleSnapshot{
		Generation:    gen,
		FetchedAt:     time.Now(),
		FeedTimestamp: feedTime,
		Vehicles:      vehicles,
	}
	if !p.current(gen) || !p.store.SetVehicles(snap) {
		p.discarded(gen, FeedVehiclePositions)
		return nil
	}
	p.metrics.SnapshotCommitted(FeedVehiclePositions, len(vehicles), snap.FetchedAt)
	p.logger.Debug("vehicle positions updated", "count", len(vehicles), "generation", gen)

	if p.sink != nil {
		if err := p.sink.PublishVehicles(vehicles); err != nil {
			p.logger.Warn("publish vehicles failed", "error", err)
		}
	}
	return nil
}

func (p *Poller) refreshTripUpdates(ctx context.Context, gen uint64) error {
	start := time.Now()
	body, err := p.fetch(ctx, FeedTripUpdates, p.cfg.TripUpdatesURL)
	var updates []TripUpdate
	var feedTime time.Time
	if err == nil {
		updates, feedTime, err = DecodeTripUpdates(body)
	}
	p.metrics.FeedFetched(FeedTripUpdates, time.Since(start))
	if err != nil {
		return p.failed(ctx, gen, FeedTripUpdates, err)
	}

	snap := &TripUpdateSnapshot{
		Generation:    gen,
		FetchedAt:     time.Now(),
		FeedTimestamp: feedTime,
		Updates:       updates,
	}
	if !p.current(gen) || !p.store.SetTripUpdates(snap) {
		p.discarded(gen, FeedTripUpdates)
		return nil
	}
	p.metrics.SnapshotCommitted(FeedTripUpdates, len(updates), snap.FetchedAt)
	p.logger.Debug("trip updates updated", "count", len(updates), "generation", gen)
	return nil
}

// failed records a feed error. Errors from a cycle that has already been
// superseded are treated as discarded results, not failures.
func (p *Poller) failed(ctx context.Context, gen uint64, feed string, err error) error {
	if !p.current(gen) && ctx.Err() != nil {
		p.discarded(gen, feed)
		return nil
	}
	p.metrics.FeedFailed(feed)
	p.logger.Warn("realtime feed unavailable, keeping previous snapshot", "feed", feed, "error", err)
	return err
}

func (p *Poller) discarded(gen uint64, feed string) {
	p.metrics.ResultDiscarded(feed)
	p.logger.Debug("discarding superseded poll result", "feed", feed, "generation", gen)
}

func (p *Poller) fetch(ctx context.Context, feed, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FeedUnavailableError{Feed: feed, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/x-protobuf")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &FeedUnavailableError{Feed: feed, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FeedUnavailableError{Feed: feed, Err: fmt.Errorf("unexpected status: %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes+1))
	if err != nil {
		return nil, &FeedUnavailableError{Feed: feed, Err: fmt.Errorf("read body: %w", err)}
	}
	if len(body) > maxFeedBytes {
		return nil, &FeedUnavailableError{Feed: feed, Err: errors.New("feed exceeds size limit")}
	}
	return body, nil
}
