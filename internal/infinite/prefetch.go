package infinite

// Trigger decides when the rendered window has come close enough to the end of the loaded
// rows that the next page should be requested.
type Trigger struct {
	// Threshold is how many rows before the end of the loaded prefix a fetch starts.
	// It is normally the page length.
	Threshold int
}

// ShouldFetch reports whether the window w warrants a fetch given loaded rows, the
// frontier and whether a fetch is already outstanding.
func (t Trigger) ShouldFetch(w Window, loaded int, f Frontier, inFlight bool) bool {
	if inFlight || !f.HasNext {
		return false
	}
	if loaded == 0 {
		return true
	}
	threshold := t.Threshold
	if threshold < 0 {
		threshold = 0
	}
	return w.Overscan.End >= loaded-threshold
}
