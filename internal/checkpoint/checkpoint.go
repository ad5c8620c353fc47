package checkpoint

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/born-ml/nnue/internal/tensor"
)

// Format constants.
const (
	MagicBytes    = "NNUE"
	FormatVersion = 1
	HeaderSize    = 4 + 4 + 8 + sha256.Size
	FileName      = "checkpoint.nnue"
)

const (
	fieldNetID      protowire.Number = 1
	fieldSuperbatch protowire.Number = 2
	fieldStep       protowire.Number = 3
	fieldValues     protowire.Number = 4
	fieldMomentum   protowire.Number = 5
	fieldVelocity   protowire.Number = 6
)

// Snapshot is the persisted training state.
type Snapshot struct {
	NetID      string
	Superbatch int
	Step       int64
	Values     []float32
	Momentum   []float32
	Velocity   []float32
}

// FromParams copies the optimizer-visible state of p into a snapshot.
func FromParams(netID string, superbatch int, step int64, p *tensor.Params) *Snapshot {
	return &Snapshot{
		NetID:      netID,
		Superbatch: superbatch,
		Step:       step,
		Values:     append([]float32(nil), p.Values...),
		Momentum:   append([]float32(nil), p.Momentum...),
		Velocity:   append([]float32(nil), p.Velocity...),
	}
}

// Restore copies the snapshot into p and clears its gradients.
func (s *Snapshot) Restore(p *tensor.Params) error {
	if len(s.Values) != p.Len() || len(s.Momentum) != p.Len() || len(s.Velocity) != p.Len() {
		return fmt.Errorf("%w: snapshot values=%d momentum=%d velocity=%d, network %d",
			ErrLengthMismatch, len(s.Values), len(s.Momentum), len(s.Velocity), p.Len())
	}
	copy(p.Values, s.Values)
	copy(p.Momentum, s.Momentum)
	copy(p.Velocity, s.Velocity)
	p.ZeroGrad()
	return nil
}

// Marshal encodes the snapshot with its header.
func Marshal(s *Snapshot) []byte {
	var payload []byte
	payload = protowire.AppendTag(payload, fieldNetID, protowire.BytesType)
	payload = protowire.AppendString(payload, s.NetID)
	payload = protowire.AppendTag(payload, fieldSuperbatch, protowire.VarintType)
	payload = protowire.AppendVarint(payload, uint64(s.Superbatch))
	payload = protowire.AppendTag(payload, fieldStep, protowire.VarintType)
	payload = protowire.AppendVarint(payload, uint64(s.Step))
	payload = appendFloats(payload, fieldValues, s.Values)
	payload = appendFloats(payload, fieldMomentum, s.Momentum)
	payload = appendFloats(payload, fieldVelocity, s.Velocity)

	out := make([]byte, HeaderSize, HeaderSize+len(payload))
	copy(out[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(out[4:8], FormatVersion)
	binary.LittleEndian.PutUint64(out[8:16], uint64(len(payload)))
	sum := sha256.Sum256(payload)
	copy(out[16:HeaderSize], sum[:])
	return append(out, payload...)
}

func appendFloats(b []byte, num protowire.Number, values []float32) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	b = protowire.AppendVarint(b, uint64(4*len(values)))
	for _, v := range values {
		b = protowire.AppendFixed32(b, math.Float32bits(v))
	}
	return b
}

// Unmarshal validates the header and checksum and decodes the payload.
func Unmarshal(data []byte) (*Snapshot, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes, header needs %d", ErrTruncated, len(data), HeaderSize)
	}
	if string(data[0:4]) != MagicBytes {
		return nil, ErrInvalidMagic
	}
	if v := binary.LittleEndian.Uint32(data[4:8]); v != FormatVersion {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedVersion, v, FormatVersion)
	}
	size := binary.LittleEndian.Uint64(data[8:16])
	payload := data[HeaderSize:]
	if uint64(len(payload)) != size {
		return nil, fmt.Errorf("%w: payload %d bytes, header says %d", ErrTruncated, len(payload), size)
	}
	var stored [sha256.Size]byte
	copy(stored[:], data[16:HeaderSize])
	if sha256.Sum256(payload) != stored {
		return nil, ErrChecksumMismatch
	}
	return decodePayload(payload)
}

func decodePayload(b []byte) (*Snapshot, error) {
	s := &Snapshot{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: tag: %w", ErrCorrupt, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldNetID && typ == protowire.BytesType:
			v, m := protowire.ConsumeString(b)
			if m < 0 {
				return nil, fmt.Errorf("%w: net id: %w", ErrCorrupt, protowire.ParseError(m))
			}
			s.NetID, n = v, m
		case num == fieldSuperbatch && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return nil, fmt.Errorf("%w: superbatch: %w", ErrCorrupt, protowire.ParseError(m))
			}
			s.Superbatch, n = int(v), m
		case num == fieldStep && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return nil, fmt.Errorf("%w: step: %w", ErrCorrupt, protowire.ParseError(m))
			}
			s.Step, n = int64(v), m
		case (num == fieldValues || num == fieldMomentum || num == fieldVelocity) && typ == protowire.BytesType:
			raw, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return nil, fmt.Errorf("%w: field %d: %w", ErrCorrupt, num, protowire.ParseError(m))
			}
			values, err := decodeFloats(raw)
			if err != nil {
				return nil, fmt.Errorf("field %d: %w", num, err)
			}
			switch num {
			case fieldValues:
				s.Values = values
			case fieldMomentum:
				s.Momentum = values
			default:
				s.Velocity = values
			}
			n = m
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("%w: field %d: %w", ErrCorrupt, num, protowire.ParseError(n))
			}
		}
		b = b[n:]
	}

	if len(s.Momentum) != len(s.Values) || len(s.Velocity) != len(s.Values) {
		return nil, fmt.Errorf("%w: values=%d momentum=%d velocity=%d",
			ErrLengthMismatch, len(s.Values), len(s.Momentum), len(s.Velocity))
	}
	return s, nil
}

func decodeFloats(raw []byte) ([]float32, error) {
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("%w: packed floats of %d bytes", ErrCorrupt, len(raw))
	}
	values := make([]float32, 0, len(raw)/4)
	for len(raw) > 0 {
		v, n := protowire.ConsumeFixed32(raw)
		if n < 0 {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, protowire.ParseError(n))
		}
		values = append(values, math.Float32frombits(v))
		raw = raw[n:]
	}
	return values, nil
}

// Write encodes the snapshot to w.
func Write(w io.Writer, s *Snapshot) error {
	if _, err := w.Write(Marshal(s)); err != nil {
		return fmt.Errorf("checkpoint: write: %w", err)
	}
	return nil
}

// Read decodes a snapshot from r.
func Read(r io.Reader) (*Snapshot, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("checkpoint: read: %w", err)
	}
	return Unmarshal(buf.Bytes())
}

// Dir returns the checkpoint directory for a net id and superbatch.
func Dir(outputDir, netID string, superbatch int) string {
	return filepath.Join(outputDir, fmt.Sprintf("%s-%d", netID, superbatch))
}

// Save writes s to Dir(outputDir, s.NetID, s.Superbatch)/FileName through a
// temporary file and returns the final path.
func Save(outputDir string, s *Snapshot) (string, error) {
	dir := Dir(outputDir, s.NetID, s.Superbatch)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("checkpoint: %w", err)
	}
	path := filepath.Join(dir, FileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, Marshal(s), 0o600); err != nil {
		return "", fmt.Errorf("checkpoint: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("checkpoint: %w", err)
	}
	return path, nil
}

// Load reads a checkpoint file. path may name the file or its directory.
func Load(path string) (*Snapshot, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, FileName)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: %w", err)
	}
	s, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}
