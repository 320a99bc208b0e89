package launcher

import (
	"fmt"
	"time"
)

// HumanDuration форматирует длительность для логов: "1d2h3m4s", "2m5s", "0.250s".
func HumanDuration(d time.Duration) string {
	prefix := ""
	if d < 0 {
		prefix = "-"
		d = -d
	}

	total := int64(d / time.Second)
	days := total / 86400
	hours := total % 86400 / 3600
	minutes := total % 3600 / 60
	seconds := total % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%s%dd%dh%dm%ds", prefix, days, hours, minutes, seconds)
	case hours > 0:
		return fmt.Sprintf("%s%dh%dm%ds", prefix, hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%s%dm%ds", prefix, minutes, seconds)
	default:
		return fmt.Sprintf("%s%.3fs", prefix, d.Seconds())
	}
}
