package reminder

import (
	"time"

	"github.com/loykin/deskpulse/internal/config"
)

// QuietSlot is a wall-clock window, in minutes since midnight. Start
// after End means the window wraps past midnight.
type QuietSlot struct {
	Start int
	End   int
}

// ParseQuietSlots converts config quiet-hour pairs into slots,
// silently skipping malformed entries (the config validator catches
// them at load time; runtime settings updates are best-effort).
func ParseQuietSlots(pairs [][]string) []QuietSlot {
	slots := make([]QuietSlot, 0, len(pairs))
	for _, pair := range pairs {
		if len(pair) != 2 {
			continue
		}
		start, err := config.ParseClock(pair[0])
		if err != nil {
			continue
		}
		end, err := config.ParseClock(pair[1])
		if err != nil {
			continue
		}
		slots = append(slots, QuietSlot{Start: start, End: end})
	}
	return slots
}

// QuietStatus reports whether now falls inside any slot and, if so,
// how many minutes remain until the active slot ends.
func QuietStatus(now time.Time, slots []QuietSlot) (active bool, remainingMinutes float64) {
	current := float64(now.Hour()*60+now.Minute()) + float64(now.Second())/60
	for _, slot := range slots {
		start, end := float64(slot.Start), float64(slot.End)
		if start == end {
			continue
		}
		if start < end {
			if current >= start && current < end {
				return true, end - current
			}
			continue
		}
		// overnight wrap
		if current >= start {
			return true, end + 1440 - current
		}
		if current < end {
			return true, end - current
		}
	}
	return false, 0
}
