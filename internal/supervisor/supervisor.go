// internal/supervisor/supervisor.go
//
// Package supervisor watches daemon reachability, bootstraps the node on
// every reconnect and exposes the result as the readiness gate used by the
// inbox poller.
package supervisor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jpillora/backoff"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/mpnode/internal/config"
	"github.com/javajoker/mpnode/internal/daemon"
	"github.com/javajoker/mpnode/internal/models"
)

// Daemon is the RPC surface the supervisor needs.
type Daemon interface {
	NetworkInfo(ctx context.Context) (*daemon.NetworkInfo, error)
	ImportPrivateKey(ctx context.Context, key, label string) (bool, error)
	LocalKeys(ctx context.Context) (*daemon.LocalKeys, error)
	AddAddress(ctx context.Context, address, publicKey string) (bool, error)
}

type MarketSeeder interface {
	SeedDefaultMarket(ctx context.Context, cfg config.MarketConfig) (*models.Market, error)
}

type CategorySeeder interface {
	SeedDefaultCategories(ctx context.Context, market *models.Market) (*models.ItemCategory, error)
}

type ProfileSeeder interface {
	SeedDefaultProfile(ctx context.Context) (*models.Profile, error)
}

type Supervisor struct {
	daemon     Daemon
	markets    MarketSeeder
	categories CategorySeeder
	profiles   ProfileSeeder
	market     config.MarketConfig
	cfg        config.SupervisorConfig
	log        *logrus.Entry

	ready atomic.Bool

	// Owned by the loop goroutine.
	connected bool
	backoff   *backoff.Backoff

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(d Daemon, markets MarketSeeder, categories CategorySeeder, profiles ProfileSeeder, market config.MarketConfig, cfg config.SupervisorConfig) *Supervisor {
	return &Supervisor{
		daemon:     d,
		markets:    markets,
		categories: categories,
		profiles:   profiles,
		market:     market,
		cfg:        cfg,
		log:        logrus.WithField("component", "supervisor"),
		backoff: &backoff.Backoff{
			Min:    cfg.DisconnectedInterval,
			Max:    cfg.MaxBackoff,
			Factor: 2,
			Jitter: true,
		},
	}
}

// Ready reports whether the daemon is reachable and the node is bootstrapped.
func (s *Supervisor) Ready() bool {
	return s.ready.Load()
}

// Start launches the supervision loop. The first check runs immediately.
func (s *Supervisor) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx, s.done)
}

// Stop cancels the loop, waits for it to exit and clears readiness.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.ready.Store(false)
}

func (s *Supervisor) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		interval := s.tick(ctx)
		if ctx.Err() != nil {
			return
		}
		timer.Reset(interval)
	}
}

// tick checks reachability once and returns the delay before the next check.
func (s *Supervisor) tick(ctx context.Context) time.Duration {
	_, err := s.daemon.NetworkInfo(ctx)
	if ctx.Err() != nil {
		return 0
	}
	if err != nil {
		if s.connected {
			s.log.WithError(err).Warn("Lost connection to daemon")
		} else {
			s.log.WithError(err).Debug("Daemon not reachable")
		}
		s.connected = false
		s.ready.Store(false)
		return s.backoff.Duration()
	}

	if s.connected {
		return s.cfg.ConnectedInterval
	}

	if err := s.bootstrap(ctx); err != nil {
		if ctx.Err() != nil {
			return 0
		}
		s.log.WithError(err).Error("Node bootstrap failed")
		return s.backoff.Duration()
	}
	if ctx.Err() != nil {
		return 0
	}

	s.connected = true
	s.backoff.Reset()
	s.ready.Store(true)
	s.log.Info("Connected to daemon")
	return s.cfg.ConnectedInterval
}

// bootstrap seeds local state and registers the market key with the transport.
// Every step is idempotent.
func (s *Supervisor) bootstrap(ctx context.Context) error {
	market, err := s.markets.SeedDefaultMarket(ctx, s.market)
	if err != nil {
		return err
	}
	if _, err := s.categories.SeedDefaultCategories(ctx, market); err != nil {
		return err
	}
	if _, err := s.profiles.SeedDefaultProfile(ctx); err != nil {
		return err
	}

	if _, err := s.daemon.ImportPrivateKey(ctx, market.PrivateKey, market.Name); err != nil {
		return fmt.Errorf("failed to import market key: %w", err)
	}

	keys, err := s.daemon.LocalKeys(ctx)
	if err != nil {
		return fmt.Errorf("failed to list transport keys: %w", err)
	}
	entry := s.log.WithField("address", market.Address)
	switch {
	case keys.Has(market.Address):
		entry.Debug("Market key already known to transport")
	case s.market.PublicKey == "":
		entry.Warn("Market public key not configured, not publishing it")
	default:
		added, err := s.daemon.AddAddress(ctx, market.Address, s.market.PublicKey)
		if err != nil {
			return fmt.Errorf("failed to publish market key: %w", err)
		}
		if added {
			entry.Info("Published market public key")
		}
	}

	entry.WithField("market", market.Name).Info("Node bootstrapped")
	return nil
}
