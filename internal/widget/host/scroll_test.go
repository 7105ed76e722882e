package host

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampHeight(t *testing.T) {
	tests := []struct {
		name    string
		height  float64
		want    int
		wantErr bool
	}{
		{"within range", 420, 420, false},
		{"fractional rounds up", 420.3, 421, false},
		{"below minimum", 10, MinHeight, false},
		{"at minimum", 60, 60, false},
		{"above maximum", 9000, MaxHeight, false},
		{"at maximum", 5000, 5000, false},
		{"zero", 0, 0, true},
		{"negative", -100, 0, true},
		{"NaN", math.NaN(), 0, true},
		{"positive infinity", math.Inf(1), 0, true},
		{"negative infinity", math.Inf(-1), 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ClampHeight(tt.height)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompensateScroll(t *testing.T) {
	// Viewport: 800px tall, scrolled to 1000, 3000px of content.
	// Center line sits at 1400.
	base := Viewport{
		ScrollTop:      1000,
		ViewportHeight: 800,
		ContentHeight:  3000,
	}

	tests := []struct {
		name   string
		vp     Viewport
		delta  float64
		want   ScrollAdjustment
	}{
		{
			name:  "widget fully above center shifts scroll by delta",
			vp:    Viewport{ScrollTop: 1000, ViewportHeight: 800, ContentHeight: 3000, WidgetTop: 100, WidgetHeight: 200},
			delta: 150,
			want:  ScrollAdjustment{ScrollDelta: 150},
		},
		{
			name:  "shrinking widget above center shifts scroll negatively",
			vp:    Viewport{ScrollTop: 1000, ViewportHeight: 800, ContentHeight: 3000, WidgetTop: 100, WidgetHeight: 200},
			delta: -80,
			want:  ScrollAdjustment{ScrollDelta: -80},
		},
		{
			name:  "widget below center causes no adjustment",
			vp:    Viewport{ScrollTop: 1000, ViewportHeight: 800, ContentHeight: 3000, WidgetTop: 1500, WidgetHeight: 200},
			delta: 150,
			want:  ScrollAdjustment{},
		},
		{
			name: "widget spanning the center line counts as not above",
			// bottom edge exactly at center 1400
			vp:    Viewport{ScrollTop: 1000, ViewportHeight: 800, ContentHeight: 3000, WidgetTop: 1200, WidgetHeight: 200},
			delta: 150,
			want:  ScrollAdjustment{},
		},
		{
			name:  "anchored to bottom re-pins instead of shifting",
			vp:    Viewport{ScrollTop: 2180, ViewportHeight: 800, ContentHeight: 3000, WidgetTop: 100, WidgetHeight: 200},
			delta: 150,
			want:  ScrollAdjustment{RepinBottom: true},
		},
		{
			name:  "within bottom tolerance still counts as anchored",
			vp:    Viewport{ScrollTop: 2150, ViewportHeight: 800, ContentHeight: 3000, WidgetTop: 100, WidgetHeight: 200},
			delta: 150,
			want:  ScrollAdjustment{RepinBottom: true},
		},
		{
			name:  "zero delta is a no-op even at bottom",
			vp:    Viewport{ScrollTop: 2200, ViewportHeight: 800, ContentHeight: 3000},
			delta: 0,
			want:  ScrollAdjustment{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CompensateScroll(tt.vp, tt.delta))
		})
	}

	assert.False(t, base.AtBottom())
}
