package format

import (
	"strconv"
	"strings"
)

// WordsPerMinute is the reading speed used for estimates.
const WordsPerMinute = 200

// CountWords returns the number of whitespace-separated tokens in s.
func CountWords(s string) int {
	return len(strings.Fields(s))
}

// ReadingMinutes converts a word count to whole minutes, rounding up.
func ReadingMinutes(words int) int {
	if words <= 0 {
		return 0
	}
	return (words + WordsPerMinute - 1) / WordsPerMinute
}

// ReadingTime returns the label for a text of the given word count:
// the fast-read label below one minute, "N min" below an hour and
// "H hours" (whole hours, rounded down) otherwise.
func ReadingTime(words int, loc Locale) string {
	minutes := ReadingMinutes(words)
	switch {
	case minutes < 1:
		return loc.FastRead
	case minutes < 60:
		return strconv.Itoa(minutes) + " " + loc.Minutes
	}
	return strconv.Itoa(minutes/60) + " " + loc.Hours
}
