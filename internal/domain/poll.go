package domain

import (
	"math"
	"time"
)

// Poll is a timed multiple-choice question. Times are unix milliseconds.
type Poll struct {
	ID            string   `json:"id"`
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	TimeLimit     int      `json:"timeLimit"`
	CorrectAnswer string   `json:"correctAnswer,omitempty"`
	StartTime     int64    `json:"startTime"`
	Ended         bool     `json:"ended"`
}

// Deadline is the instant the poll stops accepting votes.
func (p *Poll) Deadline() time.Time {
	return time.UnixMilli(p.StartTime).Add(time.Duration(p.TimeLimit) * time.Second)
}

// Active reports whether votes are accepted at now.
func (p *Poll) Active(now time.Time) bool {
	return !p.Ended && now.Before(p.Deadline())
}

// Remaining is the whole seconds left at now, as clients display it.
func (p *Poll) Remaining(now time.Time) int {
	if p.Ended {
		return 0
	}
	ms := float64(p.Deadline().Sub(now).Milliseconds())
	return int(math.Max(0, math.Round(ms/1000)))
}

// HasOption reports whether opt is one of the declared options.
func (p *Poll) HasOption(opt string) bool {
	for _, o := range p.Options {
		if o == opt {
			return true
		}
	}
	return false
}

// Clone returns a deep copy safe to hand outside the session lock.
func (p *Poll) Clone() *Poll {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Options = append([]string(nil), p.Options...)
	return &cp
}

// Tally maps participant name to the option they chose.
type Tally map[string]string

// Clone copies the tally. A nil tally clones to an empty one so it
// encodes as {} rather than null.
func (t Tally) Clone() Tally {
	out := make(Tally, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// OptionResult is the aggregated outcome for one option.
type OptionResult struct {
	Option     string `json:"option"`
	Votes      int    `json:"votes"`
	Percentage int    `json:"percentage"`
	Correct    bool   `json:"correct"`
}

// Results aggregates votes per option in declared order. Percentages are
// relative to the roster size, so non-voters pull every option down.
// Correct is only revealed once the poll has ended.
func (p *Poll) Results(votes Tally, rosterSize int) []OptionResult {
	counts := make(map[string]int, len(p.Options))
	for _, opt := range votes {
		counts[opt]++
	}

	out := make([]OptionResult, 0, len(p.Options))
	for _, opt := range p.Options {
		r := OptionResult{Option: opt, Votes: counts[opt]}
		if rosterSize > 0 {
			r.Percentage = int(math.Round(float64(r.Votes) / float64(rosterSize) * 100))
		}
		r.Correct = p.Ended && p.CorrectAnswer != "" && opt == p.CorrectAnswer
		out = append(out, r)
	}
	return out
}

// HistoryEntry is a terminated poll with its final tally. It encodes
// flat: the poll fields plus finalVotes.
type HistoryEntry struct {
	Poll
	FinalVotes Tally `json:"finalVotes"`
}
