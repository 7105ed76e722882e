package feed

// bottomTolerance is how close to the bottom edge, in pixels, still
// counts as anchored to the bottom.
const bottomTolerance = 50

// Anchor captures the on-screen position of one message element before
// a list mutation.
type Anchor struct {
	MessageID string
	Top       float64
}

// RestoreOffset returns the scroll offset that keeps the anchored
// message at the same on-screen position after older history was
// prepended. afterTop is the anchor element's position once the new
// rows are laid out.
func RestoreOffset(scrollTop float64, before Anchor, afterTop float64) float64 {
	return scrollTop + (afterTop - before.Top)
}

// AutoScroller decides when the feed should jump to the bottom. It only
// fires once the initial load completed, and only if the view was
// already at the bottom before the change that triggered it. A force
// jump (right after the user sends a message) bypasses both checks
// except readiness.
type AutoScroller struct {
	ready    bool
	atBottom bool
}

// NewAutoScroller creates a scroller that starts anchored to the
// bottom, matching a freshly opened feed.
func NewAutoScroller() *AutoScroller {
	return &AutoScroller{atBottom: true}
}

// MarkReady unlocks auto-scrolling after the initial load.
func (a *AutoScroller) MarkReady() {
	a.ready = true
}

// Ready reports whether the initial load completed.
func (a *AutoScroller) Ready() bool {
	return a.ready
}

// ObserveScroll records the current scroll position. Call from the
// scroll listener before any list mutation.
func (a *AutoScroller) ObserveScroll(scrollTop, viewportHeight, contentHeight float64) {
	a.atBottom = scrollTop+viewportHeight >= contentHeight-bottomTolerance
}

// ShouldScroll reports whether the change that just happened warrants a
// jump to the bottom.
func (a *AutoScroller) ShouldScroll(force bool) bool {
	if !a.ready {
		return false
	}
	return force || a.atBottom
}
