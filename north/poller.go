// Package north implements the minimal fetch-by-id poller a north-bound
// sending service uses to drain readings from the storage engine in order.
package north

import (
	"context"
	"log/slog"
	"time"
)

// Fetcher is the subset of readings.Store a poller needs; kept as an
// interface so the storage engine itself never has to import this package.
type Fetcher interface {
	Fetch(ctx context.Context, startID int64, blockSize int) (Result, error)
}

// Result mirrors readings.ReadingSet without importing it, so this package
// stays decoupled from the storage engine's internal row representation.
type Result struct {
	Count int
	Rows  []map[string]any
}

// Sender delivers one block of rows to the north-bound destination. It
// returns the id of the last row it successfully sent, or ok=false if
// nothing in the block was accepted.
type Sender interface {
	Send(rows []map[string]any) (lastSentID int64, ok bool)
}

// PollerConfig configures the poller loop.
type PollerConfig struct {
	// BlockSize is how many rows to request per Fetch call.
	BlockSize int
	// Interval is how long to wait after an empty block before retrying.
	Interval time.Duration
}

// DefaultPollerConfig returns the poller's default configuration.
func DefaultPollerConfig() PollerConfig {
	return PollerConfig{BlockSize: 100, Interval: time.Second}
}

// Poller repeatedly fetches readings starting after the last id it
// successfully forwarded, and hands each block to a Sender.
type Poller struct {
	fetcher Fetcher
	sender  Sender
	cfg     PollerConfig
	log     *slog.Logger

	lastSentID int64
}

// NewPoller creates a Poller that starts fetching from startID (typically
// the last id a previous run persisted).
func NewPoller(fetcher Fetcher, sender Sender, cfg PollerConfig, startID int64, log *slog.Logger) *Poller {
	if cfg.BlockSize <= 0 {
		cfg.BlockSize = 100
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Poller{fetcher: fetcher, sender: sender, cfg: cfg, log: log, lastSentID: startID}
}

// LastSentID returns the highest id the poller has confirmed sent.
func (p *Poller) LastSentID() int64 {
	return p.lastSentID
}

// Run drives the fetch/send loop until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		result, err := p.fetcher.Fetch(ctx, p.lastSentID+1, p.cfg.BlockSize)
		if err != nil {
			p.log.Error("north: fetch failed", "err", err)
			p.sleep(ctx)
			continue
		}
		if result.Count == 0 {
			p.sleep(ctx)
			continue
		}

		lastSentID, ok := p.sender.Send(result.Rows)
		if !ok {
			p.log.Warn("north: sender rejected block", "start_id", p.lastSentID+1, "count", result.Count)
			p.sleep(ctx)
			continue
		}
		p.lastSentID = lastSentID
	}
}

func (p *Poller) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(p.cfg.Interval):
	}
}
