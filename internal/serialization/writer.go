package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/brice-v/digitnet/internal/tensor"
)

// Write encodes the tensors and header into w in .dgt format.
// Tensors are laid out in sorted name order, so the output is
// deterministic for a given state dict and header.
//
// The Tensors, FormatVersion and CreatedAt fields of header are filled in
// by Write; any values the caller set there are overwritten.
func Write(w io.Writer, tensors map[string]*tensor.Tensor, header Header) error {
	names := make([]string, 0, len(tensors))
	for name := range tensors {
		names = append(names, name)
	}
	sort.Strings(names)

	header.FormatVersion = FormatVersion
	if header.CreatedAt.IsZero() {
		header.CreatedAt = time.Now().UTC()
	}
	if header.Metadata == nil {
		header.Metadata = map[string]string{}
	}
	header.Tensors = make([]TensorMeta, 0, len(names))

	var data bytes.Buffer
	for _, name := range names {
		if err := ValidateTensorName(name); err != nil {
			return err
		}
		t := tensors[name]
		raw := t.Bytes()
		header.Tensors = append(header.Tensors, TensorMeta{
			Name:   name,
			DType:  DTypeFloat32,
			Shape:  t.Shape().Clone(),
			Offset: int64(data.Len()),
			Size:   int64(len(raw)),
		})
		data.Write(raw)
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	if len(headerJSON) > MaxHeaderSize {
		return fmt.Errorf("%w: %d bytes", ErrHeaderTooLarge, len(headerJSON))
	}

	var flags uint32
	if len(header.Metadata) > 0 {
		flags |= FlagHasMetadata
	}
	if header.Signature != nil {
		flags |= FlagHasSignature
	}

	fixed := make([]byte, FixedHeaderSize)
	copy(fixed[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixed[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(fixed[8:12], flags)
	binary.LittleEndian.PutUint64(fixed[16:24], uint64(len(headerJSON)))
	binary.LittleEndian.PutUint64(fixed[24:32], uint64(data.Len()))
	sum := Sum(data.Bytes())
	copy(fixed[ChecksumOffset:ChecksumOffset+ChecksumSize], sum[:])

	if _, err := w.Write(fixed); err != nil {
		return fmt.Errorf("failed to write fixed header: %w", err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if pad := paddingFor(FixedHeaderSize + len(headerJSON)); pad > 0 {
		if _, err := w.Write(make([]byte, pad)); err != nil {
			return fmt.Errorf("failed to write padding: %w", err)
		}
	}
	if _, err := w.Write(data.Bytes()); err != nil {
		return fmt.Errorf("failed to write tensor data: %w", err)
	}
	return nil
}

// WriteFile writes a .dgt file at path.
func WriteFile(path string, tensors map[string]*tensor.Tensor, header Header) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := Write(f, tensors, header); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to sync file: %w", err)
	}
	return f.Close()
}

// paddingFor returns the bytes needed to align n to HeaderAlignment.
func paddingFor(n int) int {
	if rem := n % HeaderAlignment; rem != 0 {
		return HeaderAlignment - rem
	}
	return 0
}
