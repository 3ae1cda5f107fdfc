package auction

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hirayaph/subasta-bot/models"
)

// Phase represents the derived state of an auction at some instant
type Phase string

const (
	// PhaseNotStarted indicates bidding has not opened yet
	PhaseNotStarted Phase = "not_started"
	// PhaseLive indicates bidding is open
	PhaseLive Phase = "live"
	// PhasePaused indicates the seller or platform suspended bidding
	PhasePaused Phase = "paused"
	// PhaseEnded indicates bidding has closed
	PhaseEnded Phase = "ended"
	// PhaseUnknown indicates the auction carries no usable schedule
	PhaseUnknown Phase = "unknown"
)

// StatusPaused is the only status string the client treats specially.
const StatusPaused = "paused"

// PhaseAt derives the auction phase from the schedule, the status string and
// a wall-clock sample. Precedence: before start wins, then after end (an
// ended auction is ended even while marked paused), then paused, then live.
func PhaseAt(now time.Time, startAt, endAt *time.Time, status string) Phase {
	beforeStart := startAt != nil && now.Before(*startAt)
	afterEnd := endAt != nil && !now.Before(*endAt)
	paused := status == StatusPaused

	switch {
	case beforeStart:
		return PhaseNotStarted
	case afterEnd:
		return PhaseEnded
	case paused:
		return PhasePaused
	case startAt == nil && endAt == nil:
		return PhaseUnknown
	default:
		return PhaseLive
	}
}

// FormatDuration renders a delta as "1d 1h 1m 1s", dropping leading
// zero-valued units. Seconds are always shown; anything non-positive is "0s".
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}

	secs := int64(d / time.Second)
	days := secs / 86400
	hours := (secs % 86400) / 3600
	mins := (secs % 3600) / 60
	secs = secs % 60

	var b strings.Builder
	if days > 0 {
		fmt.Fprintf(&b, "%dd ", days)
	}
	if hours > 0 || days > 0 {
		fmt.Fprintf(&b, "%dh ", hours)
	}
	if mins > 0 || hours > 0 || days > 0 {
		fmt.Fprintf(&b, "%dm ", mins)
	}
	fmt.Fprintf(&b, "%ds", secs)
	return b.String()
}

// timeLabel is the display format for schedule boundaries.
func timeLabel(t time.Time) string {
	return t.Local().Format("Jan 2, 2006 3:04 PM")
}

// StatusLine renders the human-readable countdown line for an auction at the
// given instant. Missing timestamps degrade to an empty label.
func StatusLine(now time.Time, a *models.Auction) string {
	switch PhaseAt(now, a.StartAt, a.EndAt, a.Status) {
	case PhaseNotStarted:
		return fmt.Sprintf("bidding opens at %s (in %s)", timeLabel(*a.StartAt), FormatDuration(a.StartAt.Sub(now)))
	case PhaseEnded:
		if a.EndAt == nil {
			return "auction ended"
		}
		return fmt.Sprintf("auction ended at %s", timeLabel(*a.EndAt))
	case PhasePaused:
		if a.EndAt == nil {
			return "auction is paused"
		}
		return fmt.Sprintf("auction is paused, ends at %s", timeLabel(*a.EndAt))
	case PhaseLive:
		if a.EndAt == nil {
			return "bidding is live"
		}
		return fmt.Sprintf("ends in %s", FormatDuration(a.EndAt.Sub(now)))
	default:
		return ""
	}
}

// Clock is the cancellable 1 Hz countdown tied to an open auction view. It
// samples the wall clock every second and reports the derived phase and
// status line; Stop releases the timer on every exit path of the view.
type Clock struct {
	auction *models.Auction
	onTick  func(Phase, string)

	stop     chan struct{}
	stopOnce sync.Once
}

// NewClock creates a clock for one auction view. onTick runs on the clock's
// own goroutine once per second, and once immediately on Start.
func NewClock(a *models.Auction, onTick func(Phase, string)) *Clock {
	return &Clock{
		auction: a,
		onTick:  onTick,
		stop:    make(chan struct{}),
	}
}

// Start begins ticking until Stop is called.
func (c *Clock) Start() {
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()

		c.tick()
		for {
			select {
			case <-c.stop:
				return
			case <-ticker.C:
				c.tick()
			}
		}
	}()
}

// Stop cancels the clock. Safe to call more than once.
func (c *Clock) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Clock) tick() {
	now := time.Now()
	c.onTick(PhaseAt(now, c.auction.StartAt, c.auction.EndAt, c.auction.Status), StatusLine(now, c.auction))
}
