package checkpoint

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/born-ml/nnue/internal/tensor"
)

func testParams() *tensor.Params {
	p := tensor.NewParams(5)
	for i := range p.Values {
		p.Values[i] = float32(i) - 2.5
		p.Momentum[i] = float32(i) * 0.1
		p.Velocity[i] = float32(i) * 0.01
		p.Grads[i] = 9
	}
	return p
}

func TestMarshalUnmarshal(t *testing.T) {
	snap := FromParams("net", 40, 12345, testParams())
	data := Marshal(snap)
	assert.Equal(t, MagicBytes, string(data[:4]))
	assert.Equal(t, uint32(FormatVersion), binary.LittleEndian.Uint32(data[4:8]))

	got, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, snap, got)
}

func TestFromParamsCopies(t *testing.T) {
	p := testParams()
	snap := FromParams("net", 1, 1, p)
	p.Values[0] = 100
	assert.Equal(t, float32(-2.5), snap.Values[0])
}

func TestRestore(t *testing.T) {
	snap := FromParams("net", 1, 1, testParams())
	p := tensor.NewParams(5)
	p.Grads[0] = 3
	require.NoError(t, snap.Restore(p))
	assert.Equal(t, snap.Values, p.Values)
	assert.Equal(t, snap.Velocity, p.Velocity)
	assert.Zero(t, p.Grads[0])

	assert.ErrorIs(t, snap.Restore(tensor.NewParams(4)), ErrLengthMismatch)
}

func TestUnmarshal_Errors(t *testing.T) {
	valid := Marshal(FromParams("net", 3, 7, testParams()))

	corrupt := func(f func([]byte)) []byte {
		b := append([]byte(nil), valid...)
		f(b)
		return b
	}

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"short", valid[:10], ErrTruncated},
		{"magic", corrupt(func(b []byte) { b[0] = 'X' }), ErrInvalidMagic},
		{"version", corrupt(func(b []byte) { binary.LittleEndian.PutUint32(b[4:8], 9) }), ErrUnsupportedVersion},
		{"payload truncated", valid[:len(valid)-3], ErrTruncated},
		{"checksum", corrupt(func(b []byte) { b[len(b)-1] ^= 0xff }), ErrChecksumMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal(tt.data)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

// withPayload wraps a raw payload in a valid header.
func withPayload(payload []byte) []byte {
	s := Marshal(&Snapshot{})
	hdr := s[:HeaderSize]
	binary.LittleEndian.PutUint64(hdr[8:16], uint64(len(payload)))
	sum := sha256.Sum256(payload)
	copy(hdr[16:HeaderSize], sum[:])
	return append(hdr, payload...)
}

func TestUnmarshal_Payload(t *testing.T) {
	// Unknown fields are skipped.
	var b []byte
	b = protowire.AppendTag(b, 99, protowire.VarintType)
	b = protowire.AppendVarint(b, 5)
	b = protowire.AppendTag(b, fieldNetID, protowire.BytesType)
	b = protowire.AppendString(b, "x")
	s, err := Unmarshal(withPayload(b))
	require.NoError(t, err)
	assert.Equal(t, "x", s.NetID)

	// Values without matching moments.
	b = appendFloats(nil, fieldValues, []float32{1, 2})
	_, err = Unmarshal(withPayload(b))
	assert.ErrorIs(t, err, ErrLengthMismatch)

	// Packed floats with a ragged length.
	b = protowire.AppendTag(nil, fieldValues, protowire.BytesType)
	b = protowire.AppendBytes(b, []byte{1, 2, 3})
	_, err = Unmarshal(withPayload(b))
	assert.ErrorIs(t, err, ErrCorrupt)

	// Garbage tag.
	_, err = Unmarshal(withPayload([]byte{0xff}))
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestSaveLoad(t *testing.T) {
	dir := t.TempDir()
	snap := FromParams("simple", 10, 100, testParams())

	path, err := Save(dir, snap)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "simple-10", FileName), path)

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, snap, got)

	got, err = Load(filepath.Dir(path))
	require.NoError(t, err)
	assert.Equal(t, snap, got)

	_, err = Load(filepath.Join(dir, "missing"))
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o600))
	_, err = Load(path)
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestReadWrite(t *testing.T) {
	var buf bytes.Buffer
	snap := FromParams("rw", 2, 3, testParams())
	require.NoError(t, Write(&buf, snap))
	got, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, snap, got)
}
