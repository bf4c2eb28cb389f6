package refresher

import (
	"math/rand"
	"strings"
	"time"
)

type Rand interface {
	Intn(n int) int
}

type PlannerConfig struct {
	SettledDelay time.Duration // default: 30 days

	ActiveMinDelay time.Duration // default: 30 minutes
	ActiveMaxDelay time.Duration // default: 30 minutes

	UnknownDelay time.Duration // default: 60 minutes

	Backoff1 time.Duration // default: 5 minutes
	Backoff2 time.Duration // default: 15 minutes
	Backoff3 time.Duration // default: 30 minutes
	Backoff4 time.Duration // default: 60 minutes
}

func DefaultPlannerConfig() PlannerConfig {
	return PlannerConfig{
		SettledDelay: 30 * 24 * time.Hour,

		ActiveMinDelay: 30 * time.Minute,
		ActiveMaxDelay: 30 * time.Minute,

		UnknownDelay: 60 * time.Minute,

		Backoff1: 5 * time.Minute,
		Backoff2: 15 * time.Minute,
		Backoff3: 30 * time.Minute,
		Backoff4: 60 * time.Minute,
	}
}

type Planner struct {
	cfg PlannerConfig
	r   Rand
}

func NewPlanner(cfg PlannerConfig, r Rand) *Planner {
	def := DefaultPlannerConfig()
	if cfg.SettledDelay <= 0 {
		cfg.SettledDelay = def.SettledDelay
	}
	if cfg.ActiveMinDelay <= 0 {
		cfg.ActiveMinDelay = def.ActiveMinDelay
	}
	if cfg.ActiveMaxDelay <= 0 {
		cfg.ActiveMaxDelay = def.ActiveMaxDelay
	}
	if cfg.ActiveMaxDelay < cfg.ActiveMinDelay {
		cfg.ActiveMaxDelay = cfg.ActiveMinDelay
	}
	if cfg.UnknownDelay <= 0 {
		cfg.UnknownDelay = def.UnknownDelay
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
	if cfg.Backoff4 <= 0 {
		cfg.Backoff4 = def.Backoff4
	}
	if r == nil {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Planner{cfg: cfg, r: r}
}

// isSettled reports whether the carrier state means the shipment will
// never move again (delivered, returned to sender, terminated).
func isSettled(state string) bool {
	s := strings.ToLower(state)
	return strings.Contains(s, "delivered") ||
		strings.Contains(s, "returned") ||
		strings.Contains(s, "terminated")
}

func (p *Planner) NextRefreshDelay(state string) time.Duration {
	switch {
	case state == "":
		return p.cfg.UnknownDelay
	case isSettled(state):
		return p.cfg.SettledDelay
	default:
		min := p.cfg.ActiveMinDelay
		max := p.cfg.ActiveMaxDelay
		if max == min {
			return min
		}
		secMin := int(min.Seconds())
		secMax := int(max.Seconds())
		if secMin < 0 {
			secMin = 0
		}
		if secMax < secMin {
			secMax = secMin
		}
		return time.Duration(secMin+p.r.Intn(secMax-secMin+1)) * time.Second
	}
}

func (p *Planner) BackoffDelay(nextFailCount int32) time.Duration {
	switch {
	case nextFailCount <= 1:
		return p.cfg.Backoff1
	case nextFailCount == 2:
		return p.cfg.Backoff2
	case nextFailCount == 3:
		return p.cfg.Backoff3
	default:
		return p.cfg.Backoff4
	}
}
