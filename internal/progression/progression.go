// Package progression implements the leveling curve and XP rewards.
package progression

import "math"

// maxLevel bounds the leveling loop
const maxLevel = 10000

// XPForLevel returns the XP needed to go from level to level+1
func XPForLevel(level int) int {
	return 100 + (level-1)*50
}

// LevelInfo describes where a total XP amount sits on the leveling curve
type LevelInfo struct {
	Level   int     `json:"level"`
	InLevel int     `json:"inLevel"`
	Need    int     `json:"need"`
	Total   int     `json:"total"`
	Percent float64 `json:"progress"`
}

// LevelFromXP walks the curve from level 1 until the remaining XP no longer
// covers the next step.
func LevelFromXP(total int) LevelInfo {
	xp := max(0, total)
	level := 1
	for xp >= XPForLevel(level) && level < maxLevel {
		xp -= XPForLevel(level)
		level++
	}
	need := XPForLevel(level)
	return LevelInfo{
		Level:   level,
		InLevel: xp,
		Need:    need,
		Total:   total,
		Percent: float64(xp) / float64(need),
	}
}

// CoinsBetweenLevels grants one coin per even level reached in (from, to]
func CoinsBetweenLevels(from, to int) int {
	coins := 0
	for l := from + 1; l <= to; l++ {
		if l%2 == 0 {
			coins++
		}
	}
	return coins
}

// Update is the effect of adding XP to a user
type Update struct {
	XPBefore    int
	XP          int
	LevelBefore int
	Level       int
	CoinsEarned int
}

// ApplyXP adds gain to current and reports level changes and coins earned
func ApplyXP(current, gain int) Update {
	current = max(0, current)
	next := current + max(0, gain)
	before := LevelFromXP(current).Level
	after := LevelFromXP(next).Level
	return Update{
		XPBefore:    current,
		XP:          next,
		LevelBefore: before,
		Level:       after,
		CoinsEarned: CoinsBetweenLevels(before, after),
	}
}

// XPPolicy computes XP awarded for a ranked match
type XPPolicy struct {
	WinBase     int
	LossBase    int
	WPMDivisor  int
	MaxWPMBonus int
	Min         int
	Max         int
}

// DefaultXPPolicy matches the production reward table
var DefaultXPPolicy = XPPolicy{
	WinBase:     60,
	LossBase:    25,
	WPMDivisor:  5,
	MaxWPMBonus: 40,
	Min:         10,
	Max:         120,
}

// RankedXP returns the XP gain for one participant. Accuracy adds one point
// per full ten percent.
func (p XPPolicy) RankedXP(wpm int, acc float64, won bool) int {
	base := p.LossBase
	if won {
		base = p.WinBase
	}
	wpmBonus := 0
	if p.WPMDivisor > 0 {
		wpmBonus = min(p.MaxWPMBonus, max(0, wpm)/p.WPMDivisor)
	}
	accPct := int(math.Round(acc * 100))
	accBonus := max(0, accPct/10)

	total := base + wpmBonus + accBonus
	return max(p.Min, min(p.Max, total))
}

// Solo runs pay less than ranked matches and also reward longer sessions
const (
	soloBase        = 12
	soloWPMDivisor  = 8
	soloMaxWPMBonus = 25
	soloAccStep     = 20 // percent per point
	soloDurStep     = 30 // seconds per point
	soloMaxDurBonus = 10
	soloMin         = 5
	soloMax         = 60
)

// SoloXP returns the XP gain for a solo run of elapsedMS milliseconds
func (p XPPolicy) SoloXP(wpm int, acc float64, elapsedMS int64) int {
	wpmBonus := min(soloMaxWPMBonus, max(0, wpm)/soloWPMDivisor)
	accBonus := max(0, int(math.Round(acc*100))/soloAccStep)
	durS := int(math.Round(float64(max(0, elapsedMS)) / 1000))
	durBonus := min(soloMaxDurBonus, durS/soloDurStep)

	total := soloBase + wpmBonus + accBonus + durBonus
	return max(soloMin, min(soloMax, total))
}
