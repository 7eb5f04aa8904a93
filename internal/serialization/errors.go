package serialization

import (
	"errors"
	"fmt"
)

var (
	ErrChecksumMismatch   = errors.New("dgt: checksum mismatch")
	ErrHeaderTooLarge     = errors.New("dgt: header too large")
	ErrInvalidMagic       = errors.New("dgt: not a digitnet checkpoint")
	ErrUnsupportedVersion = errors.New("dgt: unsupported format version")
	ErrTruncated          = errors.New("dgt: truncated file")
)

// ValidationError reports a tensor table entry that cannot be trusted.
// Type names the failed check, e.g. offset_overlap or size_mismatch.
type ValidationError struct {
	Type    string
	Tensor  string
	Tensor2 string // the other tensor of an overlap or duplicate
	Details string
}

func (e *ValidationError) Error() string {
	switch {
	case e.Tensor2 != "":
		return fmt.Sprintf("dgt: %s: %q and %q: %s", e.Type, e.Tensor, e.Tensor2, e.Details)
	case e.Tensor != "":
		return fmt.Sprintf("dgt: %s: %q: %s", e.Type, e.Tensor, e.Details)
	default:
		return fmt.Sprintf("dgt: %s: %s", e.Type, e.Details)
	}
}
