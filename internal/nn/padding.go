package nn

import "fmt"

// Padding selects how spatial borders are handled by Conv2D and MaxPool2D.
type Padding int

const (
	// Valid uses no padding: windows must fit entirely inside the input.
	Valid Padding = iota
	// Same pads so that out = ceil(in / stride), splitting the padding
	// with the extra row/column on the bottom/right.
	Same
)

// String returns "VALID" or "SAME".
func (p Padding) String() string {
	switch p {
	case Valid:
		return "VALID"
	case Same:
		return "SAME"
	default:
		return fmt.Sprintf("Padding(%d)", int(p))
	}
}

// outputSize returns the output extent and the leading pad for one axis.
func (p Padding) outputSize(in, kernel, stride int) (out, padBefore int) {
	if p == Same {
		out = (in + stride - 1) / stride
		total := max((out-1)*stride+kernel-in, 0)
		return out, total / 2
	}
	return (in-kernel)/stride + 1, 0
}
