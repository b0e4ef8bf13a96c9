package strategy

import (
	"math"
	"time"

	"CryptoBacktester/internal/operations/exchange"
)

// SizerConfig holds the martingale sizing policy.
type SizerConfig struct {
	InitialPosition  float64 // first order notional in quote currency
	Multiplier       float64 // geometric growth per addition
	PriceDropPercent float64 // adverse excursion that triggers an addition
	MaxAdditions     int
	AdditionCooldown time.Duration
	Side             string // "long" or "short"
}

// PositionSizer implements martingale position sizing against a reference
// price. For longs the reference tracks the running maximum observed price,
// for shorts the running minimum, so additions measure cumulative adverse
// movement from the extreme rather than from the last fill.
type PositionSizer struct {
	config SizerConfig
	clock  Clock

	referencePrice float64
	additionCount  int
	lastAddition   time.Time
}

func NewPositionSizer(config SizerConfig, clock Clock) *PositionSizer {
	if clock == nil {
		clock = SystemClock{}
	}
	return &PositionSizer{
		config: config,
		clock:  clock,
	}
}

// Size returns the notional for the nth order of a cycle: the initial
// position for n == 0, then initial * multiplier^n.
func (s *PositionSizer) Size(n int) float64 {
	if n <= 0 {
		return s.config.InitialPosition
	}
	return s.config.InitialPosition * math.Pow(s.config.Multiplier, float64(n))
}

// UpdateReference folds the latest price into the reference extreme. Called
// once per tick before any decision is made.
func (s *PositionSizer) UpdateReference(price float64) {
	if s.referencePrice == 0 {
		s.referencePrice = price
		return
	}
	if s.config.Side == exchange.SideLong {
		if price > s.referencePrice {
			s.referencePrice = price
		}
		return
	}
	if price < s.referencePrice {
		s.referencePrice = price
	}
}

// SetReference rebases the excursion baseline, used when a new cycle opens
// at a fill price below the accumulated extreme.
func (s *PositionSizer) SetReference(price float64) {
	s.referencePrice = price
}

func (s *PositionSizer) ReferencePrice() float64 {
	return s.referencePrice
}

func (s *PositionSizer) AdditionCount() int {
	return s.additionCount
}

// ShouldOpen reports whether the excursion from the reference justifies a
// fresh entry. Fresh entries ignore the addition guards.
func (s *PositionSizer) ShouldOpen(price float64) bool {
	return s.excursionMet(price)
}

// ShouldAdd applies the guards in order: addition limit, cooldown, then the
// excursion threshold.
func (s *PositionSizer) ShouldAdd(price float64) bool {
	if s.additionCount >= s.config.MaxAdditions {
		return false
	}
	if !s.cooldownElapsed() {
		return false
	}
	return s.excursionMet(price)
}

// RecordAddition bumps the addition count and stamps the cooldown. The
// reference price deliberately stays untouched, so the next addition needs
// cumulative adverse movement from the extreme, not another full drop from
// this fill.
func (s *PositionSizer) RecordAddition() {
	s.additionCount++
	s.lastAddition = s.clock.Now()
}

// Reset clears all cycle state after a full close.
func (s *PositionSizer) Reset() {
	s.referencePrice = 0
	s.additionCount = 0
	s.lastAddition = time.Time{}
}

func (s *PositionSizer) cooldownElapsed() bool {
	if s.lastAddition.IsZero() || s.config.AdditionCooldown <= 0 {
		return true
	}
	return s.clock.Now().Sub(s.lastAddition) >= s.config.AdditionCooldown
}

func (s *PositionSizer) excursionMet(price float64) bool {
	if s.referencePrice == 0 {
		return false
	}
	threshold := s.config.PriceDropPercent / 100.0
	if s.config.Side == exchange.SideLong {
		return (s.referencePrice-price)/s.referencePrice >= threshold
	}
	return (price-s.referencePrice)/s.referencePrice >= threshold
}
