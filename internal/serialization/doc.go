// Package serialization implements the .dgt checkpoint format used by
// digitnet export bundles.
//
//	Format Structure:
//	  [0x00-0x03: Magic "DGNT"]
//	  [0x04-0x07: Version (uint32 LE)]
//	  [0x08-0x0B: Flags (uint32 LE)]
//	  [0x0C-0x0F: Reserved]
//	  [0x10-0x17: Header size (uint64 LE)]
//	  [0x18-0x1F: Data size (uint64 LE)]
//	  [0x20-0x3F: SHA-256 of the tensor data]
//	  [Header: JSON metadata]
//	  [Padding to a 64-byte boundary]
//	  [Tensor data: little-endian float32, in header order]
//
// The JSON header records the architecture, the signature (the names
// under which inputs and outputs of the exported network are addressed)
// and the location of every tensor in the data section.
//
// Example usage:
//
//	// Save
//	err := serialization.WriteFile("model.dgt", nn.StateDict(net), header)
//
//	// Load
//	f, err := serialization.ReadFile("model.dgt", serialization.ReaderOptions{})
//	err = nn.LoadStateDict(net, f.Tensors)
package serialization
