package serialization

import (
	"fmt"
	"sort"
	"strings"

	"github.com/brice-v/digitnet/internal/tensor"
)

// Validation limits for resource protection.
const (
	MaxHeaderSize    = 16 * 1024 * 1024 // maximum JSON header size
	MaxTensorCount   = 10_000           // maximum number of tensors in a file
	MaxTensorNameLen = 256              // maximum tensor name length
)

// ValidateTensorOffsets checks for overlapping tensor offsets and out-of-bounds access.
func ValidateTensorOffsets(tensors []TensorMeta, dataSize int64) error {
	if len(tensors) > MaxTensorCount {
		return &ValidationError{
			Type:    "too_many_tensors",
			Details: fmt.Sprintf("got %d, max %d", len(tensors), MaxTensorCount),
		}
	}

	sorted := make([]TensorMeta, len(tensors))
	copy(sorted, tensors)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Offset < sorted[j].Offset
	})

	for i, t := range sorted {
		if t.Offset < 0 || t.Size < 0 {
			return &ValidationError{
				Type:    "negative_offset",
				Tensor:  t.Name,
				Details: fmt.Sprintf("offset=%d, size=%d (negative values not allowed)", t.Offset, t.Size),
			}
		}
		// Offset+Size can overflow on a crafted header; compare without adding.
		if t.Offset > dataSize || t.Size > dataSize-t.Offset {
			return &ValidationError{
				Type:    "out_of_bounds",
				Tensor:  t.Name,
				Details: fmt.Sprintf("offset %d + size %d > data_size %d", t.Offset, t.Size, dataSize),
			}
		}
		if i < len(sorted)-1 {
			next := sorted[i+1]
			if t.Offset+t.Size > next.Offset {
				return &ValidationError{
					Type:    "offset_overlap",
					Tensor:  t.Name,
					Tensor2: next.Name,
					Details: fmt.Sprintf("regions [%d-%d] and [%d-%d] overlap",
						t.Offset, t.Offset+t.Size, next.Offset, next.Offset+next.Size),
				}
			}
		}
	}
	return nil
}

// ValidateTensorMeta checks that a tensor entry is self-consistent.
func ValidateTensorMeta(t TensorMeta) error {
	if err := ValidateTensorName(t.Name); err != nil {
		return err
	}
	if t.DType != DTypeFloat32 {
		return &ValidationError{Type: "unsupported_dtype", Tensor: t.Name, Details: t.DType}
	}
	shape := tensor.Shape(t.Shape)
	if err := shape.Validate(); err != nil {
		return &ValidationError{Type: "invalid_shape", Tensor: t.Name, Details: err.Error()}
	}
	if want := int64(shape.NumElements() * 4); want != t.Size {
		return &ValidationError{
			Type:    "size_mismatch",
			Tensor:  t.Name,
			Details: fmt.Sprintf("shape %v needs %d bytes, header says %d", t.Shape, want, t.Size),
		}
	}
	return nil
}

// ValidateTensorName rejects empty, oversized and control-character names.
func ValidateTensorName(name string) error {
	if name == "" {
		return &ValidationError{Type: "invalid_name", Details: "empty tensor name"}
	}
	if len(name) > MaxTensorNameLen {
		return &ValidationError{
			Type:    "name_too_long",
			Tensor:  name,
			Details: fmt.Sprintf("length %d > max %d", len(name), MaxTensorNameLen),
		}
	}
	if strings.ContainsAny(name, "/\\\x00") {
		return &ValidationError{
			Type:    "invalid_name",
			Tensor:  name,
			Details: "contains path separator or null byte",
		}
	}
	return nil
}

// ValidateHeader performs full header validation against the data section size.
func ValidateHeader(h *Header, dataSize int64) error {
	if h.FormatVersion != FormatVersion {
		return fmt.Errorf("%w: header says %d", ErrUnsupportedVersion, h.FormatVersion)
	}
	seen := make(map[string]bool, len(h.Tensors))
	for _, t := range h.Tensors {
		if err := ValidateTensorMeta(t); err != nil {
			return err
		}
		if seen[t.Name] {
			return &ValidationError{Type: "duplicate_name", Tensor: t.Name, Details: "tensor listed twice"}
		}
		seen[t.Name] = true
	}
	return ValidateTensorOffsets(h.Tensors, dataSize)
}
