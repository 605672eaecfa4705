package dc09

import "strings"

// Extras carries the optional location/verification fields appended to a
// DC-09 payload as a sequence of "[K<value>]" blocks.
type Extras struct {
	Lon          string // [X<lon>]
	Lat          string // [Y<lat>]
	MAC          string // [M<mac>]
	Verification string // [V<verification>]
}

// IsZero reports whether no extra field is set.
func (e Extras) IsZero() bool {
	return e.Lon == "" && e.Lat == "" && e.MAC == "" && e.Verification == ""
}

// Build renders the extras as a sequence of "[K<value>]" blocks, in the
// fixed order X, Y, M, V. The original Python dc09_extra never returned
// its accumulated string — a documented defect (see DESIGN.md); this
// implementation returns it.
func (e Extras) Build() string {
	if e.IsZero() {
		return ""
	}
	var b strings.Builder
	if e.Lon != "" {
		b.WriteString("[X" + e.Lon + "]")
	}
	if e.Lat != "" {
		b.WriteString("[Y" + e.Lat + "]")
	}
	if e.MAC != "" {
		b.WriteString("[M" + e.MAC + "]")
	}
	if e.Verification != "" {
		b.WriteString("[V" + e.Verification + "]")
	}
	return b.String()
}
