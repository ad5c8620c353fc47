package chess

// Chess768 maps a position to 768 = 2 sides x 6 kinds x 64 squares features,
// once from each side's perspective. From a perspective, "our" pieces occupy
// the first 384 features and the board is flipped vertically for black.
type Chess768 struct{}

// Size returns the number of input features.
func (Chess768) Size() int { return 768 }

// MaxActive returns the largest number of active features per perspective.
func (Chess768) MaxActive() int { return 32 }

// Feature returns the index of piece pc seen from perspective view.
func (Chess768) Feature(pc Piece, view Color) int32 {
	sq := pc.Square
	if view == Black {
		sq ^= 56
	}
	side := 0
	if pc.Color != view {
		side = 1
	}
	return int32(side*384 + int(pc.Kind)*64 + int(sq))
}

// Perspectives appends the side-to-move and opponent feature lists of pos to
// stm and nstm and returns them.
func (f Chess768) Perspectives(pos *Position, stm, nstm []int32) ([]int32, []int32) {
	us := pos.SideToMove
	for _, pc := range pos.Pieces {
		stm = append(stm, f.Feature(pc, us))
		nstm = append(nstm, f.Feature(pc, us.Other()))
	}
	return stm, nstm
}
