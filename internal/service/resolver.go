package service

import "typeduel/internal/model"

// Resolution reasons reported to clients and stored on match records
const (
	ReasonForfeit       = "forfeit"
	ReasonDoubleForfeit = "double forfeit"
	ReasonFinishedFirst = "finished first"
	ReasonFaster        = "faster"
	ReasonAccuracy      = "accuracy"
	ReasonWPM           = "WPM"
	ReasonDraw          = "draw"
)

// Decision is the outcome of comparing two terminal stat sets
type Decision struct {
	Winner Slot
	Reason string
}

// ResolveResult applies the completion-priority ladder to the stats of slot A
// and slot B. It is a pure function of its inputs.
func ResolveResult(a, b model.TerminalStats) Decision {
	aForfeit := a.FinishedBy.IsForfeit()
	bForfeit := b.FinishedBy.IsForfeit()
	switch {
	case aForfeit && bForfeit:
		return Decision{Winner: NoWinner, Reason: ReasonDoubleForfeit}
	case aForfeit:
		return Decision{Winner: SlotB, Reason: ReasonForfeit}
	case bForfeit:
		return Decision{Winner: SlotA, Reason: ReasonForfeit}
	}

	aText := a.FinishedBy == model.FinishedText
	bText := b.FinishedBy == model.FinishedText
	switch {
	case aText && !bText:
		return Decision{Winner: SlotA, Reason: ReasonFinishedFirst}
	case bText && !aText:
		return Decision{Winner: SlotB, Reason: ReasonFinishedFirst}
	case aText && bText:
		if a.Elapsed != b.Elapsed {
			if a.Elapsed < b.Elapsed {
				return Decision{Winner: SlotA, Reason: ReasonFaster}
			}
			return Decision{Winner: SlotB, Reason: ReasonFaster}
		}
	}

	if a.Acc != b.Acc {
		if a.Acc > b.Acc {
			return Decision{Winner: SlotA, Reason: ReasonAccuracy}
		}
		return Decision{Winner: SlotB, Reason: ReasonAccuracy}
	}
	if a.WPM != b.WPM {
		if a.WPM > b.WPM {
			return Decision{Winner: SlotA, Reason: ReasonWPM}
		}
		return Decision{Winner: SlotB, Reason: ReasonWPM}
	}
	return Decision{Winner: NoWinner, Reason: ReasonDraw}
}
