// Package chess holds the game-specific collaborators of the trainer:
// positions parsed from FEN, the Chess768 input features and the output
// bucket policies. Nothing here touches numeric buffers.
package chess

import (
	"errors"
	"fmt"
	"strings"
)

// Color is a side.
type Color uint8

// Sides.
const (
	White Color = iota
	Black
)

// Other returns the opposing side.
func (c Color) Other() Color { return c ^ 1 }

// String returns "w" or "b".
func (c Color) String() string {
	if c == White {
		return "w"
	}
	return "b"
}

// Kind is a piece type.
type Kind uint8

// Piece types in feature order.
const (
	Pawn Kind = iota
	Knight
	Bishop
	Rook
	Queen
	King
)

// Piece is a colored piece on a square. Squares are 0..63 with a1 = 0, h8 = 63.
type Piece struct {
	Kind   Kind
	Color  Color
	Square uint8
}

// Position is the subset of a chess position the trainer needs.
type Position struct {
	Pieces     []Piece
	SideToMove Color
}

// ErrInvalidFEN is returned for malformed FEN strings.
var ErrInvalidFEN = errors.New("chess: invalid FEN")

var pieceLetters = map[byte]Kind{
	'p': Pawn, 'n': Knight, 'b': Bishop, 'r': Rook, 'q': Queen, 'k': King,
}

// ParseFEN parses the board and side-to-move fields of a FEN string.
// Castling, en passant and move counters are accepted and ignored.
func ParseFEN(fen string) (*Position, error) {
	fields := strings.Fields(fen)
	if len(fields) < 2 {
		return nil, fmt.Errorf("%w: %q: want at least board and side fields", ErrInvalidFEN, fen)
	}

	ranks := strings.Split(fields[0], "/")
	if len(ranks) != 8 {
		return nil, fmt.Errorf("%w: %q: %d ranks", ErrInvalidFEN, fen, len(ranks))
	}

	pos := &Position{Pieces: make([]Piece, 0, 32)}
	for i, rank := range ranks {
		r := 7 - i
		file := 0
		for j := 0; j < len(rank); j++ {
			ch := rank[j]
			switch {
			case ch >= '1' && ch <= '8':
				file += int(ch - '0')
			default:
				color := White
				lower := ch
				if ch >= 'a' && ch <= 'z' {
					color = Black
				} else {
					lower = ch + ('a' - 'A')
				}
				kind, ok := pieceLetters[lower]
				if !ok {
					return nil, fmt.Errorf("%w: %q: unknown piece %q", ErrInvalidFEN, fen, ch)
				}
				if file > 7 {
					return nil, fmt.Errorf("%w: %q: rank %d overflows", ErrInvalidFEN, fen, r+1)
				}
				pos.Pieces = append(pos.Pieces, Piece{Kind: kind, Color: color, Square: uint8(8*r + file)})
				file++
			}
		}
		if file != 8 {
			return nil, fmt.Errorf("%w: %q: rank %d has %d files", ErrInvalidFEN, fen, r+1, file)
		}
	}

	switch fields[1] {
	case "w":
		pos.SideToMove = White
	case "b":
		pos.SideToMove = Black
	default:
		return nil, fmt.Errorf("%w: %q: side %q", ErrInvalidFEN, fen, fields[1])
	}
	return pos, nil
}

// Occupancy returns the number of pieces on the board.
func (p *Position) Occupancy() int {
	return len(p.Pieces)
}
