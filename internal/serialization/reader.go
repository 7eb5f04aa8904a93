package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/brice-v/digitnet/internal/tensor"
)

// ReaderOptions controls how much verification Read performs.
type ReaderOptions struct {
	// SkipChecksum disables the SHA-256 check of the data section.
	SkipChecksum bool
}

// File is a decoded .dgt checkpoint.
type File struct {
	Header  Header
	Flags   uint32
	Tensors map[string]*tensor.Tensor
}

// Tensor returns the named tensor or nil.
func (f *File) Tensor(name string) *tensor.Tensor {
	return f.Tensors[name]
}

// Read decodes a .dgt checkpoint from r.
func Read(r io.Reader, opts ReaderOptions) (*File, error) {
	fixed := make([]byte, FixedHeaderSize)
	if _, err := io.ReadFull(r, fixed); err != nil {
		return nil, fmt.Errorf("%w: fixed header: %v", ErrTruncated, err)
	}
	if string(fixed[0:4]) != MagicBytes {
		return nil, fmt.Errorf("%w: got %q, want %q", ErrInvalidMagic, fixed[0:4], MagicBytes)
	}
	version := binary.LittleEndian.Uint32(fixed[4:8])
	if version != FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	flags := binary.LittleEndian.Uint32(fixed[8:12])
	headerSize := binary.LittleEndian.Uint64(fixed[16:24])
	dataSize := binary.LittleEndian.Uint64(fixed[24:32])
	var stored Checksum
	copy(stored[:], fixed[ChecksumOffset:ChecksumOffset+ChecksumSize])

	if headerSize > MaxHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrHeaderTooLarge, headerSize)
	}

	headerJSON := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerJSON); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrTruncated, err)
	}
	var header Header
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}

	if pad := paddingFor(FixedHeaderSize + int(headerSize)); pad > 0 {
		if _, err := io.CopyN(io.Discard, r, int64(pad)); err != nil {
			return nil, fmt.Errorf("%w: padding: %v", ErrTruncated, err)
		}
	}

	var data bytes.Buffer
	n, err := io.CopyN(&data, r, int64(dataSize))
	if err != nil || uint64(n) != dataSize {
		return nil, fmt.Errorf("%w: data section has %d of %d bytes", ErrTruncated, n, dataSize)
	}

	if !opts.SkipChecksum {
		if err := stored.Verify(data.Bytes()); err != nil {
			return nil, err
		}
	}
	if err := ValidateHeader(&header, int64(dataSize)); err != nil {
		return nil, fmt.Errorf("invalid header: %w", err)
	}

	raw := data.Bytes()
	tensors := make(map[string]*tensor.Tensor, len(header.Tensors))
	for _, meta := range header.Tensors {
		t, err := tensor.FromBytes(tensor.Shape(meta.Shape), raw[meta.Offset:meta.Offset+meta.Size])
		if err != nil {
			return nil, fmt.Errorf("tensor %q: %w", meta.Name, err)
		}
		tensors[meta.Name] = t
	}

	return &File{Header: header, Flags: flags, Tensors: tensors}, nil
}

// ReadFile decodes the .dgt checkpoint at path.
func ReadFile(path string, opts ReaderOptions) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()
	return Read(f, opts)
}
