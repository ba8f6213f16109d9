package common

import (
	"fmt"
	"time"
)

const (
	day  = 24 * time.Hour
	week = 7 * day
)

// FormatAge renders the time elapsed since created as the largest whole unit:
// "2w", "3d", "5h", "12m" or "42s". Future timestamps render as "0s".
func FormatAge(created, now time.Time) string {
	elapsed := now.Sub(created)
	switch {
	case elapsed >= week:
		return fmt.Sprintf("%dw", elapsed/week)
	case elapsed >= day:
		return fmt.Sprintf("%dd", elapsed/day)
	case elapsed >= time.Hour:
		return fmt.Sprintf("%dh", elapsed/time.Hour)
	case elapsed >= time.Minute:
		return fmt.Sprintf("%dm", elapsed/time.Minute)
	case elapsed > 0:
		return fmt.Sprintf("%ds", elapsed/time.Second)
	default:
		return "0s"
	}
}
