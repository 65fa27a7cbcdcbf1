package profile

import "log/slog"

// Progress receives one notification per accepted profile point. It must not
// alter control flow; the tracer ignores anything a sink does.
type Progress interface {
	Point(property string, propertyIndex, direction, pointIndex int, propValue, ratio float64)
}

// PointSink persists accepted profile points. Persistence failures are logged
// and otherwise ignored; the in-memory trace is always authoritative.
type PointSink interface {
	AppendPoint(propertyIndex, direction int, pt Point) error
}

// TextProgress logs one line per accepted point.
type TextProgress struct{}

func (TextProgress) Point(property string, propertyIndex, direction, pointIndex int, propValue, ratio float64) {
	slog.Info("Profile point",
		"property", property,
		"direction", direction,
		"point", pointIndex,
		"value", propValue,
		"ratio", ratio,
	)
}

// SilentProgress discards all notifications.
type SilentProgress struct{}

func (SilentProgress) Point(string, int, int, int, float64, float64) {}
