package serialization

import (
	"time"
)

// Format constants.
const (
	MagicBytes      = "DGNT"
	FormatVersion   = 1
	HeaderAlignment = 64   // Align tensor data to 64 bytes
	FixedHeaderSize = 64   // Fixed header size (0x40 bytes)
	ChecksumSize    = 32   // SHA-256 checksum size
	ChecksumOffset  = 0x20 // Checksum offset in the fixed header
)

// DTypeFloat32 is the only tensor data type stored in checkpoints.
const DTypeFloat32 = "float32"

// Flags for the .dgt format.
const (
	FlagHasMetadata  uint32 = 1 << 0 // custom metadata included
	FlagHasSignature uint32 = 1 << 1 // signature included
)

// Header represents the JSON header in a .dgt file.
type Header struct {
	FormatVersion int               `json:"format_version"`
	Producer      string            `json:"producer"`            // Program and version that wrote the file
	Architecture  string            `json:"architecture"`        // Network variant, e.g. "cnn"
	RunID         string            `json:"run_id,omitempty"`    // Training run identifier
	CreatedAt     time.Time         `json:"created_at"`          // When the file was created
	Signature     *Signature        `json:"signature,omitempty"` // Named inputs and outputs
	Tensors       []TensorMeta      `json:"tensors"`             // Tensor metadata
	Metadata      map[string]string `json:"metadata"`            // Custom metadata
}

// Signature names the inputs and outputs of an exported network.
type Signature struct {
	Inputs  map[string]TensorInfo `json:"inputs"`
	Outputs map[string]TensorInfo `json:"outputs"`
}

// TensorInfo describes a signature tensor. A -1 dimension is the batch.
type TensorInfo struct {
	DType string `json:"dtype"`
	Shape []int  `json:"shape"`
}

// TensorMeta describes a tensor in the .dgt file.
type TensorMeta struct {
	Name   string `json:"name"`   // Tensor name (e.g., "conv1.weight")
	DType  string `json:"dtype"`  // Data type, always "float32"
	Shape  []int  `json:"shape"`  // Tensor shape
	Offset int64  `json:"offset"` // Offset in the data section
	Size   int64  `json:"size"`   // Size in bytes
}
