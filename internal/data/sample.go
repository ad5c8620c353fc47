package data

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strconv"
	"strings"

	"github.com/born-ml/nnue/internal/chess"
)

// Sample is one training position with side-to-move relative labels.
type Sample struct {
	Position *chess.Position
	Score    float32 // Engine score in centipawns, side to move
	Result   float32 // Game result for the side to move: 1 win, 0.5 draw, 0 loss
}

// ParseLine parses a "<fen> | <score> | <result>" line. Score and result are
// white relative in the text and converted to the side to move.
func ParseLine(line string) (Sample, error) {
	parts := strings.Split(line, "|")
	if len(parts) != 3 {
		return Sample{}, fmt.Errorf("data: %q: want 3 fields separated by '|', got %d", line, len(parts))
	}

	pos, err := chess.ParseFEN(strings.TrimSpace(parts[0]))
	if err != nil {
		return Sample{}, fmt.Errorf("data: %w", err)
	}
	score, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 32)
	if err != nil {
		return Sample{}, fmt.Errorf("data: %q: score: %w", line, err)
	}
	result, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 32)
	if err != nil {
		return Sample{}, fmt.Errorf("data: %q: result: %w", line, err)
	}
	if result < 0 || result > 1 {
		return Sample{}, fmt.Errorf("data: %q: result %v outside [0, 1]", line, result)
	}

	s := Sample{Position: pos, Score: float32(score), Result: float32(result)}
	if pos.SideToMove == chess.Black {
		s.Score = -s.Score
		s.Result = 1 - s.Result
	}
	return s, nil
}

// ReadSamples parses every non-empty line of r. Lines starting with '#' are skipped.
func ReadSamples(r io.Reader) ([]Sample, error) {
	var samples []Sample
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		s, err := ParseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		samples = append(samples, s)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("data: read: %w", err)
	}
	return samples, nil
}

// LoadFiles reads and concatenates the samples of every file.
func LoadFiles(paths ...string) ([]Sample, error) {
	var all []Sample
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("data: %w", err)
		}
		samples, err := ReadSamples(f)
		closeErr := f.Close()
		if err != nil {
			return nil, fmt.Errorf("data: %s: %w", path, err)
		}
		if closeErr != nil {
			return nil, fmt.Errorf("data: %s: %w", path, closeErr)
		}
		all = append(all, samples...)
	}
	if len(all) == 0 {
		return nil, ErrNoSamples
	}
	return all, nil
}

// ErrNoSamples is returned when the inputs contain no positions.
var ErrNoSamples = errors.New("data: no samples")

// Source yields samples one at a time. Next returns io.EOF when exhausted.
type Source interface {
	Next() (Sample, error)
}

// SliceSource cycles over an in-memory sample set forever, reshuffling on each
// pass when Shuffle is set.
type SliceSource struct {
	samples []Sample
	order   []int
	pos     int
	rng     *rand.Rand
	shuffle bool
}

// NewSliceSource creates a cycling source. seed makes shuffling reproducible.
func NewSliceSource(samples []Sample, shuffle bool, seed int64) *SliceSource {
	order := make([]int, len(samples))
	for i := range order {
		order[i] = i
	}
	s := &SliceSource{
		samples: samples,
		order:   order,
		rng:     rand.New(rand.NewSource(seed)),
		shuffle: shuffle,
	}
	s.reshuffle()
	return s
}

// Next returns the next sample, wrapping around at the end of a pass.
func (s *SliceSource) Next() (Sample, error) {
	if len(s.samples) == 0 {
		return Sample{}, io.EOF
	}
	if s.pos == len(s.order) {
		s.pos = 0
		s.reshuffle()
	}
	sample := s.samples[s.order[s.pos]]
	s.pos++
	return sample, nil
}

func (s *SliceSource) reshuffle() {
	if s.shuffle {
		s.rng.Shuffle(len(s.order), func(i, j int) { s.order[i], s.order[j] = s.order[j], s.order[i] })
	}
}

// FiniteSource yields each sample once, in order.
type FiniteSource struct {
	samples []Sample
	pos     int
}

// NewFiniteSource creates a single-pass source.
func NewFiniteSource(samples []Sample) *FiniteSource {
	return &FiniteSource{samples: samples}
}

// Next returns the next sample or io.EOF.
func (s *FiniteSource) Next() (Sample, error) {
	if s.pos >= len(s.samples) {
		return Sample{}, io.EOF
	}
	s.pos++
	return s.samples[s.pos-1], nil
}
