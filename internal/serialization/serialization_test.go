package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/brice-v/digitnet/internal/tensor"
)

func testTensors() map[string]*tensor.Tensor {
	return map[string]*tensor.Tensor{
		"fc.weight": tensor.MustNew(tensor.Shape{2, 3}, []float32{1, 2, 3, 4, 5, 6}),
		"fc.bias":   tensor.MustNew(tensor.Shape{3}, []float32{-1, 0, 1}),
	}
}

func testHeader() Header {
	return Header{
		Producer:     "digitnet test",
		Architecture: "dense",
		RunID:        "run-1",
		Signature: &Signature{
			Inputs: map[string]TensorInfo{
				"input":       {DType: DTypeFloat32, Shape: []int{-1, 784}},
				"dropoutRate": {DType: DTypeFloat32, Shape: []int{}},
			},
			Outputs: map[string]TensorInfo{
				"output": {DType: DTypeFloat32, Shape: []int{-1, 10}},
			},
		},
		Metadata: map[string]string{"steps": "10"},
	}
}

// TestRoundTrip verifies write and read with checksum validation.
func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.dgt")

	if err := WriteFile(path, testTensors(), testHeader()); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	f, err := ReadFile(path, ReaderOptions{})
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	if f.Header.Architecture != "dense" {
		t.Errorf("architecture = %q, want dense", f.Header.Architecture)
	}
	if f.Header.FormatVersion != FormatVersion {
		t.Errorf("format version = %d, want %d", f.Header.FormatVersion, FormatVersion)
	}
	if f.Flags&FlagHasSignature == 0 || f.Flags&FlagHasMetadata == 0 {
		t.Errorf("flags = %b, want signature and metadata bits", f.Flags)
	}
	if _, ok := f.Header.Signature.Inputs["dropoutRate"]; !ok {
		t.Error("signature lost dropoutRate input")
	}

	for name, want := range testTensors() {
		got := f.Tensor(name)
		if got == nil {
			t.Fatalf("tensor %q missing", name)
		}
		if !got.Shape().Equal(want.Shape()) {
			t.Errorf("%s shape = %v, want %v", name, got.Shape(), want.Shape())
		}
		for i, v := range want.Data() {
			if got.Data()[i] != v {
				t.Errorf("%s[%d] = %f, want %f", name, i, got.Data()[i], v)
			}
		}
	}
}

// TestDeterministicOutput verifies identical inputs produce identical bytes.
func TestDeterministicOutput(t *testing.T) {
	h := testHeader()
	h.CreatedAt = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	var a, b bytes.Buffer
	if err := Write(&a, testTensors(), h); err != nil {
		t.Fatal(err)
	}
	if err := Write(&b, testTensors(), h); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Error("two writes of the same state dict differ")
	}
}

func TestDataIsAligned(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, testTensors(), testHeader()); err != nil {
		t.Fatal(err)
	}
	// 6+3 float32 values follow the aligned header.
	dataStart := buf.Len() - 9*4
	if dataStart%HeaderAlignment != 0 {
		t.Errorf("data starts at %d, not aligned to %d", dataStart, HeaderAlignment)
	}
}

func TestChecksumMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.dgt")
	if err := WriteFile(path, testTensors(), testHeader()); err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	raw[len(raw)-1] ^= 0xFF
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatal(err)
	}

	_, err = ReadFile(path, ReaderOptions{})
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("expected ErrChecksumMismatch, got %v", err)
	}

	if _, err := ReadFile(path, ReaderOptions{SkipChecksum: true}); err != nil {
		t.Fatalf("SkipChecksum read failed: %v", err)
	}
}

func TestInvalidMagic(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, testTensors(), testHeader()); err != nil {
		t.Fatal(err)
	}
	raw := buf.Bytes()
	copy(raw[0:4], "GGUF")

	_, err := Read(bytes.NewReader(raw), ReaderOptions{})
	if !errors.Is(err, ErrInvalidMagic) {
		t.Fatalf("expected ErrInvalidMagic, got %v", err)
	}
}

func TestTruncated(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, testTensors(), testHeader()); err != nil {
		t.Fatal(err)
	}
	raw := buf.Bytes()

	for _, n := range []int{10, FixedHeaderSize + 5, len(raw) - 4} {
		_, err := Read(bytes.NewReader(raw[:n]), ReaderOptions{})
		if !errors.Is(err, ErrTruncated) {
			t.Errorf("len %d: expected ErrTruncated, got %v", n, err)
		}
	}
}

func TestInvalidTensorName(t *testing.T) {
	tensors := map[string]*tensor.Tensor{
		"../evil": tensor.MustNew(tensor.Shape{1}, []float32{1}),
	}
	var buf bytes.Buffer
	err := Write(&buf, tensors, testHeader())
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if ve.Type != "invalid_name" {
		t.Errorf("type = %q, want invalid_name", ve.Type)
	}
}

func TestValidateTensorOffsets(t *testing.T) {
	tests := []struct {
		name     string
		tensors  []TensorMeta
		dataSize int64
		wantType string
	}{
		{
			name: "valid",
			tensors: []TensorMeta{
				{Name: "a", Offset: 0, Size: 16},
				{Name: "b", Offset: 16, Size: 8},
			},
			dataSize: 24,
		},
		{
			name: "overlap",
			tensors: []TensorMeta{
				{Name: "a", Offset: 0, Size: 16},
				{Name: "b", Offset: 8, Size: 8},
			},
			dataSize: 24,
			wantType: "offset_overlap",
		},
		{
			name:     "out of bounds",
			tensors:  []TensorMeta{{Name: "a", Offset: 8, Size: 32}},
			dataSize: 24,
			wantType: "out_of_bounds",
		},
		{
			name:     "negative",
			tensors:  []TensorMeta{{Name: "a", Offset: -4, Size: 4}},
			dataSize: 24,
			wantType: "negative_offset",
		},
		{
			name:     "offset overflows",
			tensors:  []TensorMeta{{Name: "a", Offset: math.MaxInt64 - 3, Size: 24}},
			dataSize: 24,
			wantType: "out_of_bounds",
		},
		{
			name:     "size overflows",
			tensors:  []TensorMeta{{Name: "a", Offset: 8, Size: math.MaxInt64}},
			dataSize: 24,
			wantType: "out_of_bounds",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTensorOffsets(tt.tensors, tt.dataSize)
			if tt.wantType == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Type != tt.wantType {
				t.Errorf("type = %q, want %q", ve.Type, tt.wantType)
			}
		})
	}
}

func TestValidateTensorMetaSizeMismatch(t *testing.T) {
	err := ValidateTensorMeta(TensorMeta{Name: "w", DType: DTypeFloat32, Shape: []int{2, 2}, Size: 12})
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Type != "size_mismatch" {
		t.Fatalf("expected size_mismatch, got %v", err)
	}
}

// TestHugeOffsetInHeader rewrites the tensor table of a valid file so an
// offset points far past the data section. The checksum only covers the
// data, so the reader must reject the table itself.
func TestHugeOffsetInHeader(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, testTensors(), testHeader()); err != nil {
		t.Fatal(err)
	}
	raw := buf.Bytes()

	headerSize := binary.LittleEndian.Uint64(raw[16:24])
	dataSize := binary.LittleEndian.Uint64(raw[24:32])
	var header Header
	if err := json.Unmarshal(raw[FixedHeaderSize:FixedHeaderSize+int(headerSize)], &header); err != nil {
		t.Fatal(err)
	}
	data := raw[len(raw)-int(dataSize):]
	header.Tensors[0].Offset = math.MaxInt64 - 3

	headerJSON, err := json.Marshal(header)
	if err != nil {
		t.Fatal(err)
	}
	fixed := append([]byte(nil), raw[:FixedHeaderSize]...)
	binary.LittleEndian.PutUint64(fixed[16:24], uint64(len(headerJSON)))

	var crafted bytes.Buffer
	crafted.Write(fixed)
	crafted.Write(headerJSON)
	crafted.Write(make([]byte, paddingFor(FixedHeaderSize+len(headerJSON))))
	crafted.Write(data)

	_, err = Read(bytes.NewReader(crafted.Bytes()), ReaderOptions{})
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Type != "out_of_bounds" {
		t.Fatalf("expected out_of_bounds, got %v", err)
	}
}
