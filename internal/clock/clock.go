// Package clock turns the feed's last draw timestamp into wait durations.
//
// The feed reports draw times as "MM-DD HH:MM:SS" in UTC+8 with no year.
// The year of "now", read in UTC+8, is spliced in. Both the offset and the
// splice are fixed by the feed; the bot drifts from the real draws if either changes.
package clock

import (
	"fmt"
	"strconv"
	"time"
)

// FeedZone is the fixed offset the feed publishes draw times in.
var FeedZone = time.FixedZone("UTC+8", 8*60*60)

// minFallbackWait is used when the cadence-based fallback would be non-positive.
const minFallbackWait = 60 * time.Second

var layouts = []string{"01-02 15:04:05", "01-02 15:04"}

// Clock holds the draw timing constants.
type Clock struct {
	DrawCadence time.Duration // interval between draws
	PollLead    time.Duration // start polling this long before the next expected draw
	BetDelay    time.Duration // venue reopens this long after a draw
}

// New returns a Clock with the given timing.
func New(drawCadence, pollLead, betDelay time.Duration) *Clock {
	return &Clock{DrawCadence: drawCadence, PollLead: pollLead, BetDelay: betDelay}
}

// ParseAwardTime parses a feed timestamp, taking the year from now.
func ParseAwardTime(s string, now time.Time) (time.Time, error) {
	year := now.In(FeedZone).Year()
	withYear := strconv.Itoa(year) + "-" + s
	for _, layout := range layouts {
		if t, err := time.ParseInLocation("2006-"+layout, withYear, FeedZone); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized award time %q", s)
}

// FallbackWait is the poll and next-draw wait used when a timestamp cannot be parsed.
func (c *Clock) FallbackWait() time.Duration {
	d := c.DrawCadence - c.PollLead
	if d <= 0 {
		return minFallbackWait
	}
	return d
}

// TimeUntilBettingOpens returns lastAward + BetDelay - now, floored at zero.
// An unparseable timestamp yields BetDelay, as the caller has just seen that draw.
func (c *Clock) TimeUntilBettingOpens(lastAward string, now time.Time) (time.Duration, error) {
	d, err := c.until(lastAward, c.BetDelay, now)
	if err != nil {
		return c.BetDelay, err
	}
	return d, nil
}

// TimeUntilPollWindow returns lastAward + DrawCadence - PollLead - now, floored at zero.
func (c *Clock) TimeUntilPollWindow(lastAward string, now time.Time) (time.Duration, error) {
	return c.until(lastAward, c.DrawCadence-c.PollLead, now)
}

// TimeUntilNextDraw returns lastAward + DrawCadence - now, floored at zero.
func (c *Clock) TimeUntilNextDraw(lastAward string, now time.Time) (time.Duration, error) {
	return c.until(lastAward, c.DrawCadence, now)
}

// until returns the floored wait, or FallbackWait together with the parse error.
func (c *Clock) until(lastAward string, offset time.Duration, now time.Time) (time.Duration, error) {
	t, err := ParseAwardTime(lastAward, now)
	if err != nil {
		return c.FallbackWait(), err
	}
	d := t.Add(offset).Sub(now)
	if d < 0 {
		return 0, nil
	}
	return d, nil
}
