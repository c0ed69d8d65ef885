package mailer

import (
	"errors"
	"time"

	kit "digestbot/internal/transport"
)

// ErrBusy is returned when a broadcast is requested while another run for the
// same target is still in flight.
var ErrBusy = errors.New("mailer: broadcast already running")

// MessagePart is one unit of delivery. Either Text is set (rendered HTML) or
// Copy points at an existing message to re-send verbatim.
type MessagePart struct {
	Text string
	Copy *kit.MessageRef
}

// Outcome classifies how a single recipient ended up.
type Outcome int

const (
	// OutcomeDelivered: every part reached the recipient.
	OutcomeDelivered Outcome = iota
	// OutcomeBlocked: the recipient is permanently unreachable; remaining
	// parts were skipped.
	OutcomeBlocked
	// OutcomeFailed: a part failed for a non-permanent reason and the retry
	// budget was exhausted.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeBlocked:
		return "blocked"
	case OutcomeFailed:
		return "failed"
	default:
		return "delivered"
	}
}

// Summary aggregates one broadcast run.
type Summary struct {
	Total       int `json:"total"`
	Delivered   int `json:"delivered"`
	Blocked     int `json:"blocked"`
	Failed      int `json:"failed"`
	Parts       int `json:"parts"`
	SourceItems int `json:"source_items"`
}

// RunRecord is one entry in the run history ring.
type RunRecord struct {
	Kind       string    `json:"kind"` // "category" or "full"
	CategoryID int64     `json:"category_id,omitempty"`
	Started    time.Time `json:"started"`
	Finished   time.Time `json:"finished"`
	Summary    Summary   `json:"summary"`
	Err        string    `json:"err,omitempty"`
}

// Config holds segmentation and pacing knobs. Zero fields fall back to the
// defaults below.
type Config struct {
	PartLimit      int
	PartDelay      time.Duration
	RecipientDelay time.Duration
	RatePerSec     int
	FetchTimeout   time.Duration
	HistorySize    int
}

const (
	defaultPartLimit      = 4000
	defaultPartDelay      = 200 * time.Millisecond
	defaultRecipientDelay = 200 * time.Millisecond
	defaultRatePerSec     = 25
	defaultFetchTimeout   = 30 * time.Second
	defaultHistorySize    = 50
)

func (c Config) withDefaults() Config {
	if c.PartLimit <= 0 {
		c.PartLimit = defaultPartLimit
	}
	if c.PartDelay <= 0 {
		c.PartDelay = defaultPartDelay
	}
	if c.RecipientDelay <= 0 {
		c.RecipientDelay = defaultRecipientDelay
	}
	if c.RatePerSec <= 0 {
		c.RatePerSec = defaultRatePerSec
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = defaultFetchTimeout
	}
	if c.HistorySize <= 0 {
		c.HistorySize = defaultHistorySize
	}
	return c
}
