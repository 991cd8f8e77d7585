package timeengine

import (
	"math"
	"strconv"
	"time"
)

// CounterValue interpolates linearly from start to end over durationSeconds.
// The value clamps at end once elapsed reaches the duration; a non-positive
// duration finishes immediately.
func CounterValue(start int64, end int64, durationSeconds float64, elapsed time.Duration) (int64, bool) {
	durationMilliseconds := durationSeconds * 1000
	if durationMilliseconds <= 0 {
		return end, true
	}
	elapsedMilliseconds := float64(elapsed.Milliseconds())
	if elapsedMilliseconds < 0 {
		elapsedMilliseconds = 0
	}
	progress := elapsedMilliseconds / durationMilliseconds
	if progress >= 1 {
		return end, true
	}
	value := math.Floor(float64(start) + float64(end-start)*progress)
	return int64(value), false
}

// CounterDigits splits the counter value into one string per character.
func CounterDigits(value int64) []string {
	text := strconv.FormatInt(value, 10)
	digits := make([]string, 0, len(text))
	for _, character := range text {
		digits = append(digits, string(character))
	}
	return digits
}
