package service

import (
	"math"
	"time"

	"typeduel/internal/model"
)

// StatsFromProgress turns the last live snapshot of a participant into
// terminal stats. A nil snapshot yields zero-activity stats with perfect
// accuracy and the time since start as elapsed.
func StatsFromProgress(p *model.LiveProgress, startAt, now time.Time, reason model.CompletionReason) model.TerminalStats {
	sinceStart := max(0, now.Sub(startAt).Milliseconds())
	if p == nil {
		return model.TerminalStats{
			Acc:        1,
			Elapsed:    sinceStart,
			FinishedBy: reason,
		}
	}

	correct := max(0, p.Pos)
	errs := max(0, p.Errors)
	typed := max(1, correct+errs)
	elapsed := p.T
	if elapsed <= 0 {
		elapsed = sinceStart
	}
	elapsed = max(1, elapsed)

	minutes := math.Max(0.001, float64(elapsed)/60000)
	wpm := int(math.Round((float64(correct) / 5) / minutes))
	acc := math.Min(1, math.Max(0, float64(correct)/float64(typed)))

	return model.TerminalStats{
		WPM:        wpm,
		Acc:        acc,
		Typed:      typed,
		Correct:    correct,
		Errors:     errs,
		Elapsed:    elapsed,
		FinishedBy: reason,
	}
}

// forfeitStats are the zeroed stats recorded for the participant who forfeits
func forfeitStats(startAt, now time.Time, reason model.CompletionReason) model.TerminalStats {
	return model.TerminalStats{
		Elapsed:    max(0, now.Sub(startAt).Milliseconds()),
		FinishedBy: reason,
	}
}
