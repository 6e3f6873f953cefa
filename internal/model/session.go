package model

// CompletionReason tells how a participant reached a terminal state
type CompletionReason string

const (
	FinishedText      CompletionReason = "finished_text"
	TimeLimit         CompletionReason = "time_limit"
	ForfeitInactive   CompletionReason = "forfeit_inactive"
	ForfeitDisconnect CompletionReason = "forfeit_disconnect"
	// WinByForfeit marks stats derived for a participant whose opponent forfeited
	WinByForfeit CompletionReason = "win_by_forfeit"
)

// IsForfeit reports whether the reason counts against the participant
func (r CompletionReason) IsForfeit() bool {
	return r == ForfeitInactive || r == ForfeitDisconnect
}

// ParseCompletionReason normalizes a client-reported finishedBy value.
// Unknown values are treated as the time limit expiring.
func ParseCompletionReason(raw string) CompletionReason {
	switch CompletionReason(raw) {
	case FinishedText, "text":
		return FinishedText
	case ForfeitInactive:
		return ForfeitInactive
	case ForfeitDisconnect:
		return ForfeitDisconnect
	default:
		return TimeLimit
	}
}

// LiveProgress is the latest self-reported snapshot of a participant
type LiveProgress struct {
	Pos    int   `json:"pos"`    // correct position in the challenge
	Errors int   `json:"errors"` // error count so far
	T      int64 `json:"t"`      // elapsed milliseconds since start
}

// TerminalStats is the final, immutable performance of one participant
type TerminalStats struct {
	WPM        int              `json:"wpm"`
	Acc        float64          `json:"acc"` // 0..1
	Typed      int              `json:"typed"`
	Correct    int              `json:"correct"`
	Errors     int              `json:"errors"`
	Elapsed    int64            `json:"elapsed"` // milliseconds
	FinishedBy CompletionReason `json:"finishedBy"`
}

// Sanitized returns a copy with counters floored at zero, accuracy clamped to
// [0,1] and the completion reason normalized.
func (s TerminalStats) Sanitized() TerminalStats {
	out := s
	out.WPM = max(0, out.WPM)
	out.Typed = max(0, out.Typed)
	out.Correct = max(0, out.Correct)
	out.Errors = max(0, out.Errors)
	out.Elapsed = max(0, out.Elapsed)
	switch {
	case out.Acc < 0 || out.Acc != out.Acc:
		out.Acc = 0
	case out.Acc > 1:
		out.Acc = 1
	}
	out.FinishedBy = ParseCompletionReason(string(out.FinishedBy))
	return out
}
