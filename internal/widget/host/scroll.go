package host

import (
	"fmt"
	"math"
)

// Frame height bounds in pixels.
const (
	MinHeight     = 60
	MaxHeight     = 5000
	DefaultHeight = 100

	// BottomTolerance is how close to the bottom edge still counts as
	// "anchored to bottom".
	BottomTolerance = 50
)

// ClampHeight validates and clamps a widget-reported height to the
// allowed frame range.
func ClampHeight(height float64) (int, error) {
	if math.IsNaN(height) || math.IsInf(height, 0) {
		return 0, fmt.Errorf("invalid height: %v", height)
	}
	if height <= 0 {
		return 0, fmt.Errorf("invalid height: %v", height)
	}
	if height < MinHeight {
		return MinHeight, nil
	}
	if height > MaxHeight {
		return MaxHeight, nil
	}
	return int(math.Ceil(height)), nil
}

// Viewport is a snapshot of the scroll container at the moment a widget
// reports a new height. All values are pixels.
type Viewport struct {
	ScrollTop      float64 // current scroll offset
	ViewportHeight float64 // visible height of the scroll container
	ContentHeight  float64 // total scrollable content height
	WidgetTop      float64 // widget's top edge in content coordinates
	WidgetHeight   float64 // widget's height before the resize
}

// AtBottom reports whether the view is anchored to the bottom within
// the pixel tolerance.
func (v Viewport) AtBottom() bool {
	return v.ContentHeight-(v.ScrollTop+v.ViewportHeight) <= BottomTolerance
}

// ScrollAdjustment says what the host must do to keep the user's eye
// position stable across a widget resize.
type ScrollAdjustment struct {
	// ScrollDelta is added to the scroll offset immediately.
	ScrollDelta float64
	// RepinBottom re-anchors to the bottom on the next frame, after the
	// resize has settled.
	RepinBottom bool
}

// CompensateScroll computes the adjustment for a widget growing or
// shrinking by delta pixels.
//
// Bottom anchoring wins: if the feed is already pinned to the bottom,
// it is re-pinned after the resize so streaming content stays anchored.
// Otherwise a widget lying entirely above the viewport's vertical
// center shifts the scroll offset by delta so visible content does not
// jump. A widget spanning the center line counts as not above it and
// causes no compensation.
func CompensateScroll(v Viewport, delta float64) ScrollAdjustment {
	if delta == 0 {
		return ScrollAdjustment{}
	}
	if v.AtBottom() {
		return ScrollAdjustment{RepinBottom: true}
	}

	center := v.ScrollTop + v.ViewportHeight/2
	if v.WidgetTop+v.WidgetHeight < center {
		return ScrollAdjustment{ScrollDelta: delta}
	}
	return ScrollAdjustment{}
}
