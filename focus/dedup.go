package focus

// Dedup remembers the last delivered title and suppresses repeats of it.
// The zero value has no remembered title, so the first offer always passes.
type Dedup struct {
	last string
	seen bool
}

// Offer reports whether title should be delivered and, if so, records it as
// the last delivered title.
func (d *Dedup) Offer(title string) bool {
	if d.seen && d.last == title {
		return false
	}
	d.last = title
	d.seen = true
	return true
}

// Last returns the last delivered title, if any.
func (d *Dedup) Last() (string, bool) {
	return d.last, d.seen
}
