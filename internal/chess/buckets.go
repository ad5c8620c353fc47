package chess

// Policy assigns each position to one of Buckets() output buckets.
type Policy interface {
	Buckets() int
	Bucket(pos *Position) int
}

// Single puts every position in bucket 0.
type Single struct{}

// Buckets returns 1.
func (Single) Buckets() int { return 1 }

// Bucket returns 0.
func (Single) Bucket(*Position) int { return 0 }

// MaterialCount splits positions into N buckets by piece count.
type MaterialCount struct {
	N int
}

// Buckets returns N.
func (m MaterialCount) Buckets() int { return m.N }

// Bucket returns (pieces-2) / ceil(32/N), clamped to the valid range. N <= 1
// always yields bucket 0.
func (m MaterialCount) Bucket(pos *Position) int {
	if m.N <= 1 {
		return 0
	}
	divisor := (32 + m.N - 1) / m.N
	b := (pos.Occupancy() - 2) / divisor
	return min(max(b, 0), m.N-1)
}

// OCB separates opposite-coloured-bishop endings: bucket 1 when the board has
// exactly two bishops, of different colors, standing on squares of different
// colors. Everything else is bucket 0.
type OCB struct{}

// Buckets returns 2.
func (OCB) Buckets() int { return 2 }

// Bucket returns 1 for opposite-coloured bishops.
func (OCB) Bucket(pos *Position) int {
	var bishops []Piece
	for _, pc := range pos.Pieces {
		if pc.Kind == Bishop {
			bishops = append(bishops, pc)
		}
	}
	if len(bishops) != 2 {
		return 0
	}
	a, b := bishops[0], bishops[1]
	if a.Color != b.Color && squareColor(a.Square) != squareColor(b.Square) {
		return 1
	}
	return 0
}

// squareColor returns 0 for dark squares and 1 for light squares.
func squareColor(sq uint8) uint8 {
	return (sq & 1) ^ ((sq >> 3) & 1)
}

// PolicyByName resolves a policy from its CLI name: "single", "material8",
// "material4", "ocb".
func PolicyByName(name string) (Policy, bool) {
	switch name {
	case "", "single":
		return Single{}, true
	case "material4":
		return MaterialCount{N: 4}, true
	case "material8":
		return MaterialCount{N: 8}, true
	case "ocb":
		return OCB{}, true
	default:
		return nil, false
	}
}
