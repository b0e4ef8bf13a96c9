package strategy

import (
	"fmt"
	"sort"

	"CryptoBacktester/config"
	"CryptoBacktester/internal/operations/exchange"
	"CryptoBacktester/internal/services/risk"
)

// Deps bundles the collaborators a strategy is built from. Risk may be nil,
// in which case the builder derives an engine from the config's risk section.
type Deps struct {
	Exchange exchange.Exchange
	Risk     *risk.Engine
	Clock    Clock
}

type Builder func(cfg *config.StrategyConfig, deps Deps) (Strategy, error)

// Registry maps strategy names to builders so runs can select a strategy
// from configuration alone.
type Registry struct {
	builders map[string]Builder
}

func NewRegistry() *Registry {
	r := &Registry{builders: make(map[string]Builder)}
	r.Register("martingale", buildMartingale)
	return r
}

func (r *Registry) Register(name string, builder Builder) {
	r.builders[name] = builder
}

func (r *Registry) Build(name string, cfg *config.StrategyConfig, deps Deps) (Strategy, error) {
	builder, exists := r.builders[name]
	if !exists {
		return nil, fmt.Errorf("unknown strategy %q (available: %v)", name, r.Names())
	}
	return builder(cfg, deps)
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.builders))
	for name := range r.builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func buildMartingale(cfg *config.StrategyConfig, deps Deps) (Strategy, error) {
	if deps.Exchange == nil {
		return nil, fmt.Errorf("strategy martingale: exchange is required")
	}
	riskEngine := deps.Risk
	if riskEngine == nil {
		riskEngine = risk.NewEngine(risk.Config{
			StopLossPercent:   cfg.Risk.StopLossPercent,
			TakeProfitPercent: cfg.Risk.TakeProfitPercent,
			MaxLossPercent:    cfg.Risk.MaxLossPercent,
		})
	}
	return NewMartingale(cfg, deps.Exchange, riskEngine, deps.Clock), nil
}
