package grid

import (
	"math"

	"tutorcal/internal/lesson"
)

// Percent converts a day offset in milliseconds to a percentage of the day.
func Percent(offsetMs int64) float64 {
	return float64(offsetMs) / float64(lesson.DayLength) * 100
}

// Position maps a percentage of the day in [0, 100] linearly onto
// [0, columnHeight] pixels.
func Position(percent, columnHeight float64) float64 {
	return percent / 100 * columnHeight
}

// OffsetPosition is Position for a day offset in milliseconds. It scales
// before dividing so whole-minute offsets land on exact pixels.
func OffsetPosition(offsetMs int64, columnHeight float64) float64 {
	return float64(offsetMs) * columnHeight / float64(lesson.DayLength)
}

// Height is the pixel height of the span between two offsets; never negative.
func Height(startMs, endMs int64, columnHeight float64) float64 {
	return math.Abs(OffsetPosition(endMs, columnHeight) - OffsetPosition(startMs, columnHeight))
}

// Top is the pixel offset of whichever end of the span is higher up.
func Top(startMs, endMs int64, columnHeight float64) float64 {
	return math.Min(OffsetPosition(startMs, columnHeight), OffsetPosition(endMs, columnHeight))
}
