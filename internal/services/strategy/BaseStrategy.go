package strategy

import "log"

// Base carries the bookkeeping shared by all strategy implementations:
// lifecycle flags, trade counters and callback dispatch. Concrete strategies
// embed it and keep their decision logic on top.
type Base struct {
	name        string
	description string

	active  bool
	running bool
	status  string

	totalTrades int
	winTrades   int
	lossTrades  int

	lastError string
	callbacks Callbacks
}

func NewBase(name, description string) Base {
	return Base{
		name:        name,
		description: description,
		status:      StatusIdle,
	}
}

func (b *Base) Name() string {
	return b.name
}

func (b *Base) Description() string {
	return b.description
}

func (b *Base) SetCallbacks(callbacks Callbacks) {
	b.callbacks = callbacks
}

func (b *Base) IsActive() bool {
	return b.active
}

func (b *Base) SetActive(active bool) {
	b.active = active
}

func (b *Base) IsRunning() bool {
	return b.running
}

func (b *Base) SetRunning(running bool) {
	b.running = running
}

func (b *Base) Status() string {
	return b.status
}

func (b *Base) SetStatus(status string) {
	if b.status == status {
		return
	}
	b.status = status
	if b.callbacks.OnStatusChange != nil {
		b.callbacks.OnStatusChange(status)
	}
}

// RecordTrade counts the trade and notifies listeners. Only trades that
// carry a realized pnl are classified; a zero pnl close counts as neither
// win nor loss.
func (b *Base) RecordTrade(trade Trade) {
	b.totalTrades++
	if trade.PnL != nil {
		if *trade.PnL > 0 {
			b.winTrades++
		} else if *trade.PnL < 0 {
			b.lossTrades++
		}
	}
	if b.callbacks.OnTrade != nil {
		b.callbacks.OnTrade(trade)
	}
}

func (b *Base) ReportError(message string) {
	b.lastError = message
	log.Printf("Strategy %s: %s", b.name, message)
	if b.callbacks.OnError != nil {
		b.callbacks.OnError(message)
	}
}

// Report is a point-in-time snapshot of the strategy's state for status
// queries and run summaries.
type Report struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Active      bool    `json:"active"`
	Running     bool    `json:"running"`
	Status      string  `json:"status"`
	TotalTrades int     `json:"total_trades"`
	WinTrades   int     `json:"win_trades"`
	LossTrades  int     `json:"loss_trades"`
	WinRate     float64 `json:"win_rate"`
	LastError   string  `json:"last_error,omitempty"`
}

func (b *Base) Report() Report {
	r := Report{
		Name:        b.name,
		Description: b.description,
		Active:      b.active,
		Running:     b.running,
		Status:      b.status,
		TotalTrades: b.totalTrades,
		WinTrades:   b.winTrades,
		LossTrades:  b.lossTrades,
		LastError:   b.lastError,
	}
	if decided := b.winTrades + b.lossTrades; decided > 0 {
		r.WinRate = float64(b.winTrades) / float64(decided) * 100
	}
	return r
}
