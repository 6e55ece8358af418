package producer

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog/log"

	"producer-service/internal/config"
	"producer-service/internal/delivery"
	"producer-service/internal/lock"
	"producer-service/internal/model"
)

// Producer runs one build-and-deliver cycle
type Producer struct {
	cfg        config.Config
	builder    *model.Builder
	dispatcher *delivery.Dispatcher
	locker     lock.Locker
}

// New wires a Producer against the real clock, HTTP and, when configured, Redis.
func New(cfg config.Config) *Producer {
	clk := clock.New()

	var locker lock.Locker = lock.NoopLocker{}
	if cfg.LockEnabled() {
		ttl, raised := lockTTL(cfg)
		if raised {
			log.Warn().
				Dur("lock_ttl", cfg.LockTTL()).
				Dur("longest_run", LongestRun(cfg)).
				Dur("effective_ttl", ttl).
				Msg("Run lock TTL is shorter than the longest possible run, extending it")
		}
		locker = lock.NewRedisLocker(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.LockKey, ttl)
	}

	return NewWithDeps(cfg, clk, delivery.NewHTTPPoster(delivery.RequestTimeout), clk, locker)
}

// lockMargin is added on top of the longest run when the configured TTL is too short
const lockMargin = time.Minute

// LongestRun is the worst case for one run: every attempt hits the request timeout
// and every gap between attempts is waited in full.
func LongestRun(cfg config.Config) time.Duration {
	attempts := cfg.MaxRetries
	if attempts < 1 {
		attempts = 1
	}
	return time.Duration(attempts)*delivery.RequestTimeout + time.Duration(attempts-1)*cfg.RetryDelay()
}

// lockTTL returns the TTL to hold the run lock with, and whether the configured one had to be raised
// so the lock cannot expire while the run is still retrying.
func lockTTL(cfg config.Config) (time.Duration, bool) {
	ttl := cfg.LockTTL()
	if longest := LongestRun(cfg); longest >= ttl {
		return longest + lockMargin, true
	}
	return ttl, false
}

func NewWithDeps(cfg config.Config, clk model.Clock, poster delivery.Poster, sleeper delivery.Sleeper, locker lock.Locker) *Producer {
	dispatcher := delivery.NewDispatcher(cfg.Endpoint(), poster, sleeper)
	dispatcher.MaxRetries = cfg.MaxRetries
	dispatcher.RetryDelay = cfg.RetryDelay()

	return &Producer{
		cfg:        cfg,
		builder:    model.NewBuilder(cfg.Environment, clk),
		dispatcher: dispatcher,
		locker:     locker,
	}
}

// Run builds one message and delivers it. It reports whether the API accepted it;
// a skipped run (lock held elsewhere) reports false. It never returns an error.
func (p *Producer) Run(ctx context.Context) bool {
	logger := log.Ctx(ctx)
	logger.Info().Msg("Starting producer service")
	logger.Info().Str("api_url", p.cfg.APIURL).Msg("API URL")
	logger.Info().Str("environment", p.cfg.Environment).Msg("Environment")
	logger.Debug().Object("config", p.cfg).Msg("Configuration")

	held, err := p.locker.Acquire(ctx)
	switch {
	case err != nil:
		logger.Warn().Err(err).Msg("Run lock unavailable, continuing without it")
	case !held:
		logger.Info().Str("lock_key", p.cfg.LockKey).Msg("Another producer run holds the lock, skipping")
		return false
	default:
		defer func() {
			if err := p.locker.Release(ctx); err != nil {
				logger.Warn().Err(err).Msg("Failed to release run lock")
			}
		}()
	}

	msg := p.builder.Create()
	logger.Info().Interface("message", msg).Msg("Created message")

	success := p.dispatcher.Send(ctx, msg)
	if success {
		logger.Info().Msg("Producer completed successfully")
	} else {
		logger.Warn().Msg("Producer completed with warnings (API unreachable)")
	}
	return success
}
