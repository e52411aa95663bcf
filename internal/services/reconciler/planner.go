package reconciler

import (
	"math/rand"
	"time"
)

type Rand interface {
	Intn(n int) int
}

type PlannerConfig struct {
	MinInterval time.Duration // default: 10 minutes
	MaxInterval time.Duration // default: 20 minutes

	// Backoff after sweeps that could not read the store at all.
	Backoff1 time.Duration // default: 30 seconds
	Backoff2 time.Duration // default: 2 minutes
	Backoff3 time.Duration // default: 5 minutes
}

func DefaultPlannerConfig() PlannerConfig {
	return PlannerConfig{
		MinInterval: 10 * time.Minute,
		MaxInterval: 20 * time.Minute,

		Backoff1: 30 * time.Second,
		Backoff2: 2 * time.Minute,
		Backoff3: 5 * time.Minute,
	}
}

// Planner decides when the next sweep runs.
type Planner struct {
	cfg PlannerConfig
	r   Rand
}

func NewPlanner(cfg PlannerConfig, r Rand) *Planner {
	def := DefaultPlannerConfig()
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = def.MinInterval
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = def.MaxInterval
	}
	if cfg.MaxInterval < cfg.MinInterval {
		cfg.MaxInterval = cfg.MinInterval
	}
	if cfg.Backoff1 <= 0 {
		cfg.Backoff1 = def.Backoff1
	}
	if cfg.Backoff2 <= 0 {
		cfg.Backoff2 = def.Backoff2
	}
	if cfg.Backoff3 <= 0 {
		cfg.Backoff3 = def.Backoff3
	}
	if r == nil {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Planner{cfg: cfg, r: r}
}

func (p *Planner) Config() PlannerConfig { return p.cfg }

// NextSweepDelay returns a delay uniformly drawn from [MinInterval,
// MaxInterval] with one second resolution.
func (p *Planner) NextSweepDelay() time.Duration {
	min := p.cfg.MinInterval
	max := p.cfg.MaxInterval
	if max == min {
		return min
	}
	secMin := int(min.Seconds())
	secMax := int(max.Seconds())
	if secMax <= secMin {
		return min
	}
	return time.Duration(secMin+p.r.Intn(secMax-secMin+1)) * time.Second
}

func (p *Planner) BackoffDelay(consecutiveFailures int) time.Duration {
	switch {
	case consecutiveFailures <= 1:
		return p.cfg.Backoff1
	case consecutiveFailures == 2:
		return p.cfg.Backoff2
	default:
		return p.cfg.Backoff3
	}
}
