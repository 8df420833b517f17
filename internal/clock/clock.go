package clock

import "time"

// Session classifies the simulated timestamp against the market day.
type Session string

const (
	SessionPreMarket  Session = "pre_market"
	SessionRegular    Session = "regular"
	SessionPostMarket Session = "post_market"
	SessionClosed     Session = "closed"
)

// DefaultMarketTimezone is used when no timezone is configured.
const DefaultMarketTimezone = "America/New_York"

// Clock is a virtual clock owned by exactly one backtest run. It only moves
// when the run's replayer advances it; nothing here reads the wall clock.
// The owner is the sole mutator, so the clock carries no locking of its own.
type Clock struct {
	current  *time.Time
	location *time.Location
}

// New creates a clock for the given market timezone. An empty name selects
// DefaultMarketTimezone; an unknown name falls back to UTC.
func New(timezone string) *Clock {
	if timezone == "" {
		timezone = DefaultMarketTimezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc = time.UTC
	}
	return &Clock{location: loc}
}

// Advance sets the current simulated time unconditionally. Callers are
// responsible for monotonicity; replays that rewind on purpose stay legal.
func (c *Clock) Advance(t time.Time) {
	tt := t
	c.current = &tt
}

// Now returns the current simulated time, or nil before the first Advance.
func (c *Clock) Now() *time.Time {
	return c.current
}

// Today returns the calendar date of the current simulated time in UTC.
// The zero time is returned before the first Advance.
func (c *Clock) Today() time.Time {
	if c.current == nil {
		return time.Time{}
	}
	y, m, d := c.current.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// TodayMarket returns the calendar date in the configured market timezone.
func (c *Clock) TodayMarket() time.Time {
	if c.current == nil {
		return time.Time{}
	}
	local := c.current.In(c.location)
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, c.location)
}

// MarketOpen reports whether the simulated time falls inside regular trading
// hours, [09:30, 16:00) on a weekday. False before the first Advance.
func (c *Clock) MarketOpen() bool {
	return c.Session() == SessionRegular
}

// Session returns the market session for the current simulated time.
func (c *Clock) Session() Session {
	if c.current == nil {
		return SessionClosed
	}
	local := c.current.In(c.location)
	if wd := local.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return SessionClosed
	}

	minutes := local.Hour()*60 + local.Minute()
	switch {
	case minutes >= 4*60 && minutes < 9*60+30:
		return SessionPreMarket
	case minutes >= 9*60+30 && minutes < 16*60:
		return SessionRegular
	case minutes >= 16*60 && minutes < 20*60:
		return SessionPostMarket
	default:
		return SessionClosed
	}
}

// Reset clears the clock for reuse.
func (c *Clock) Reset() {
	c.current = nil
}
