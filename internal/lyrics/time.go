package lyrics

import "fmt"

// FormatDuration renders milliseconds as m:ss.
func FormatDuration(durationMillis int64) string {
	if durationMillis < 0 {
		durationMillis = 0
	}
	minutes := durationMillis / (60 * 1000)
	seconds := (durationMillis % (60 * 1000)) / 1000
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}
