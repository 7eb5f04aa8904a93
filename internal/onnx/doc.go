// Package onnx exports trained digitnet networks as ONNX models.
//
// The protobuf messages are a hand-written subset of onnx.proto, encoded
// and decoded with google.golang.org/protobuf/encoding/protowire. Only the
// fields the exporter emits are modelled.
//
// Images flow through digitnet in NHWC layout while ONNX convolution and
// pooling operators expect NCHW, so Export inserts Transpose nodes around
// the convolutional part of a network and transposes kernels from HWIO to
// OIHW.
//
// Example usage:
//
//	model, err := onnx.Export(net.Layers(), onnx.ExportOptions{InputName: "input", OutputName: "output"})
//	if err != nil {
//	    return err
//	}
//	err = os.WriteFile("model.onnx", onnx.Marshal(model), 0o644)
package onnx
