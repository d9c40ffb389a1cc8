package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const minutesPerDay = 24 * 60

// parseHHMM validates a wall-clock slot like "08:00".
func parseHHMM(s string) (hour, minute int, err error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h, m, nil
}

// cronSpec renders a daily 5-field spec for HH:MM.
func cronSpec(hour, minute int) string {
	return fmt.Sprintf("%d %d * * *", minute, hour)
}

// notifyAt shifts a slot earlier by lead, borrowing across the hour and the
// day. dayBefore reports whether the shifted time lands on the previous day,
// in which case the notification speaks about the next day's slot.
func notifyAt(hour, minute int, lead time.Duration) (h, m int, dayBefore bool) {
	total := hour*60 + minute - int(lead.Minutes())
	dayBefore = total < 0
	total = ((total % minutesPerDay) + minutesPerDay) % minutesPerDay
	return total / 60, total % 60, dayBefore
}
