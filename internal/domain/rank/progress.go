package rank

// Progress is the position of rating inside t, in [0, 1]. It clamps even when
// the caller passes a tier that does not contain rating, and a zero-width
// tier divides by one.
func Progress(rating int, t Tier) float64 {
	span := max(1, float64(t.Max)-float64(t.Min))
	f := (float64(rating) - float64(t.Min)) / span
	return min(1, max(0, f))
}

// Percent converts a progress fraction into a progress-bar width.
func Percent(fraction float64) float64 {
	return fraction * 100
}
