package analytics

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/joshdurbin/ns-shortener/internal/domain"
	"github.com/joshdurbin/ns-shortener/internal/metrics"
	"github.com/joshdurbin/ns-shortener/internal/repository"
)

// Config tunes the ingestion pipeline
type Config struct {
	QueueSize       int           `yaml:"queue-size"`
	Workers         int           `yaml:"workers"`
	Retention       time.Duration `yaml:"retention"`
	JanitorInterval time.Duration `yaml:"janitor-interval"`
	GeoIPDatabase   string        `yaml:"geoip-database"`
	NodeID          int64         `yaml:"node-id"`
}

// DefaultConfig returns the default pipeline configuration
func DefaultConfig() Config {
	return Config{
		QueueSize:       10000,
		Workers:         4,
		Retention:       90 * 24 * time.Hour,
		JanitorInterval: time.Hour,
		NodeID:          1,
	}
}

// Deps are the pipeline's collaborators; Stats, Geo, Clock, Metrics and Logger are optional
type Deps struct {
	Store   repository.ClickStore
	Stats   StatsApplier
	Geo     GeoResolver
	Clock   domain.Clock
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// Pipeline moves click events from resolution into the store through a
// bounded queue. Enqueueing never blocks: a full or closed queue drops the
// event and counts the drop.
type Pipeline struct {
	cfg     Config
	store   repository.ClickStore
	stats   StatsApplier
	geo     GeoResolver
	clock   domain.Clock
	node    *snowflake.Node
	metrics *metrics.Metrics
	logger  *zap.Logger

	queue    chan *domain.ClickEvent
	mu       sync.RWMutex
	closed   bool
	started  bool
	group    *errgroup.Group
	cancel   context.CancelFunc
	dropped  atomic.Int64
	ingested atomic.Int64

	janitorMutex sync.Mutex
	stopChan     chan struct{}
	running      bool
}

// NewPipeline creates a pipeline; call Start to begin consuming
func NewPipeline(cfg Config, deps Deps) (*Pipeline, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("click store is required")
	}
	defaults := DefaultConfig()
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaults.QueueSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaults.Workers
	}
	if cfg.Retention <= 0 {
		cfg.Retention = defaults.Retention
	}
	if cfg.JanitorInterval <= 0 {
		cfg.JanitorInterval = defaults.JanitorInterval
	}
	if deps.Geo == nil {
		deps.Geo = &MaxMindResolver{}
	}
	if deps.Clock == nil {
		deps.Clock = domain.RealClock{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	node, err := snowflake.NewNode(cfg.NodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to create snowflake node: %w", err)
	}

	return &Pipeline{
		cfg:      cfg,
		store:    deps.Store,
		stats:    deps.Stats,
		geo:      deps.Geo,
		clock:    deps.Clock,
		node:     node,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		queue:    make(chan *domain.ClickEvent, cfg.QueueSize),
		stopChan: make(chan struct{}),
	}, nil
}

// RecordClick builds a click event for a successful resolution and enqueues it
func (p *Pipeline) RecordClick(namespaceID, shortcode string, meta domain.RequestMeta) bool {
	return p.Enqueue(&domain.ClickEvent{
		NamespaceID: namespaceID,
		Shortcode:   shortcode,
		Timestamp:   p.clock.Now(),
		Sequence:    p.node.Generate().Int64(),
		IPAddress:   meta.IPAddress,
		UserAgent:   NormalizeUserAgent(meta.UserAgent),
		Referrer:    NormalizeReferrer(meta.Referrer),
	})
}

// Enqueue offers an event to the queue without blocking
func (p *Pipeline) Enqueue(e *domain.ClickEvent) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.drop()
		return false
	}

	select {
	case p.queue <- e:
		p.metrics.ClickEnqueued()
		p.metrics.QueueDepth(len(p.queue))
		return true
	default:
		p.drop()
		return false
	}
}

func (p *Pipeline) drop() {
	p.dropped.Add(1)
	p.metrics.ClickDropped()
}

// Dropped returns the number of events dropped so far
func (p *Pipeline) Dropped() int64 {
	return p.dropped.Load()
}

// Ingested returns the number of events written to the store so far
func (p *Pipeline) Ingested() int64 {
	return p.ingested.Load()
}

// Start launches the consumers and the retention janitor
func (p *Pipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started || p.closed {
		p.mu.Unlock()
		return
	}
	p.started = true
	workCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p.cancel = cancel
	p.group, workCtx = errgroup.WithContext(workCtx)
	p.mu.Unlock()

	for i := 0; i < p.cfg.Workers; i++ {
		p.group.Go(func() error {
			for e := range p.queue {
				p.process(workCtx, e)
			}
			return nil
		})
	}

	p.StartJanitor(ctx, p.cfg.JanitorInterval)
	p.logger.Info("click pipeline started",
		zap.Int("workers", p.cfg.Workers),
		zap.Int("queue_size", p.cfg.QueueSize))
}

func (p *Pipeline) process(ctx context.Context, e *domain.ClickEvent) {
	defer p.metrics.QueueDepth(len(p.queue))

	loc := p.geo.Lookup(e.IPAddress)
	e.Country, e.City = loc.Country, loc.City

	if err := p.store.RecordClick(ctx, e); err != nil {
		p.metrics.ClickFailed()
		if errors.Is(err, domain.ErrNotFound) {
			p.logger.Debug("click for removed record discarded",
				zap.String("namespace", e.NamespaceID),
				zap.String("shortcode", e.Shortcode))
			return
		}
		p.logger.Warn("failed to record click",
			zap.String("namespace", e.NamespaceID),
			zap.String("shortcode", e.Shortcode),
			zap.Error(err))
		return
	}
	p.ingested.Add(1)
	p.metrics.ClickIngested()

	if p.stats == nil {
		return
	}
	if err := p.stats.Apply(ctx, e.NamespaceID, domain.StatsDelta{TotalClicks: 1}); err != nil {
		p.logger.Warn("failed to apply click to namespace stats",
			zap.String("namespace", e.NamespaceID),
			zap.Error(err))
	}
}

// Prune removes raw events older than the retention window
func (p *Pipeline) Prune(ctx context.Context) (int64, error) {
	before := p.clock.Now().Add(-p.cfg.Retention)
	n, err := p.store.PruneClicks(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("failed to prune click events: %w", err)
	}
	p.metrics.ClicksPruned(n)
	return n, nil
}

// StartJanitor prunes expired raw events on the given interval until stopped
func (p *Pipeline) StartJanitor(ctx context.Context, interval time.Duration) {
	p.janitorMutex.Lock()
	if p.running {
		p.janitorMutex.Unlock()
		return
	}
	p.running = true
	stopChan := p.stopChan
	p.janitorMutex.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				n, err := p.Prune(ctx)
				if err != nil {
					p.logger.Warn("click janitor failed", zap.Error(err))
					continue
				}
				if n > 0 {
					p.logger.Info("pruned click events", zap.Int64("count", n))
				}
			case <-stopChan:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// StopJanitor stops the retention janitor
func (p *Pipeline) StopJanitor() {
	p.janitorMutex.Lock()
	defer p.janitorMutex.Unlock()

	if !p.running {
		return
	}
	p.running = false
	close(p.stopChan)

	// Create new channel for potential restart
	p.stopChan = make(chan struct{})
}

// Close stops accepting events and waits for the consumers to drain the
// queue. When ctx ends first the remaining store writes are cancelled.
func (p *Pipeline) Close(ctx context.Context) error {
	p.StopJanitor()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	started, group, cancel := p.started, p.group, p.cancel
	p.mu.Unlock()

	if !started {
		return nil
	}
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- group.Wait()
	}()

	select {
	case err := <-done:
		p.logger.Info("click pipeline drained",
			zap.Int64("ingested", p.Ingested()),
			zap.Int64("dropped", p.Dropped()))
		return err
	case <-ctx.Done():
		cancel()
		return fmt.Errorf("failed to drain click queue: %w", ctx.Err())
	}
}
