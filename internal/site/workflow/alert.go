package workflow

// AlertTracker decides when a notification count should raise an alert:
// once on first observation if the count is positive, then whenever the
// count strictly increases. Not safe for concurrent use.
type AlertTracker struct {
	observed bool
	last     int
}

// Observe records count and reports whether an alert fires.
func (a *AlertTracker) Observe(count int) bool {
	var fire bool
	if !a.observed {
		fire = count > 0
	} else {
		fire = count > a.last
	}
	a.observed = true
	a.last = count
	return fire
}

// Last returns the previously observed count.
func (a *AlertTracker) Last() int {
	return a.last
}
