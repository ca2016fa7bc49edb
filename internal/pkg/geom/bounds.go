package geom

// Bounds is an axis-aligned box over every ordinate of a layout. The zero
// Bounds for a layout is empty.
type Bounds struct {
	Layout Layout
	Min    Coord
	Max    Coord
}

// NewBounds returns empty bounds for l.
func NewBounds(l Layout) Bounds {
	return Bounds{Layout: l}
}

func (b Bounds) IsEmpty() bool { return b.Min == nil }

// Extend grows b to include c.
func (b *Bounds) Extend(c Coord) {
	if b.Min == nil {
		b.Min = c.Clone()
		b.Max = c.Clone()
		return
	}
	for i := range b.Min {
		if c[i] < b.Min[i] {
			b.Min[i] = c[i]
		}
		if c[i] > b.Max[i] {
			b.Max[i] = c[i]
		}
	}
}

// ComputeBounds returns the bounds of every coordinate in g.
func ComputeBounds(g Geometry) Bounds {
	b := NewBounds(g.Layout())
	for c := range g.Coords() {
		b.Extend(c)
	}
	return b
}
