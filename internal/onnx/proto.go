package onnx

// ONNX protobuf data structures (hand-written subset).

// ModelProto represents an ONNX model.
type ModelProto struct {
	IRVersion       int64           // IR version
	OpsetImport     []OperatorSetID // Opset version(s)
	ProducerName    string          // Framework name
	ProducerVersion string          // Framework version
	Domain          string          // Model domain
	ModelVersion    int64           // Model version number
	DocString       string          // Model description
	Graph           *GraphProto     // Computation graph
}

// GraphProto represents the computation graph.
type GraphProto struct {
	Name         string           // Graph name
	Nodes        []NodeProto      // Operation nodes
	Inputs       []ValueInfoProto // Graph inputs
	Outputs      []ValueInfoProto // Graph outputs
	Initializers []TensorProto    // Weight tensors
}

// NodeProto represents a single operation.
type NodeProto struct {
	Name       string           // Node name
	OpType     string           // Operation type (e.g., "Conv", "Gemm", "Relu")
	Inputs     []string         // Input tensor names
	Outputs    []string         // Output tensor names
	Attributes []AttributeProto // Operation attributes
	Domain     string           // Custom domain (empty for default)
}

// TensorProto represents a tensor (weights/initializers).
type TensorProto struct {
	Name      string    // Tensor name
	DataType  int32     // Element data type
	Dims      []int64   // Tensor shape
	RawData   []byte    // Raw little-endian data
	FloatData []float32 // Float32 data (legacy)
	Int64Data []int64   // Int64 data (legacy)
}

// ValueInfoProto describes input/output tensor specifications.
type ValueInfoProto struct {
	Name string     // Tensor name
	Type *TypeProto // Tensor type information
}

// TypeProto describes tensor type.
type TypeProto struct {
	TensorType *TensorTypeProto
}

// TensorTypeProto describes tensor shape and element type.
type TensorTypeProto struct {
	ElemType int32             // Element data type
	Shape    *TensorShapeProto // Tensor shape
}

// TensorShapeProto describes tensor dimensions.
type TensorShapeProto struct {
	Dims []DimensionProto
}

// DimensionProto describes a single dimension.
type DimensionProto struct {
	DimValue int64  // Static dimension value
	DimParam string // Dynamic dimension name (e.g., "batch")
}

// AttributeProto represents node attributes.
type AttributeProto struct {
	Name   string    // Attribute name
	Type   int32     // Attribute type
	F      float32   // FLOAT value
	I      int64     // INT value
	S      []byte    // STRING value
	Floats []float32 // FLOATS array
	Ints   []int64   // INTS array
}

// OperatorSetID identifies opset version.
type OperatorSetID struct {
	Domain  string // Operator domain (empty for default)
	Version int64  // Opset version number
}

// ONNX data types (TensorProto.DataType).
const (
	TensorProtoFloat = 1 // float32
	TensorProtoInt64 = 7 // int64
)

// ONNX attribute types (AttributeProto.Type).
const (
	AttributeProtoFloat  = 1 // FLOAT
	AttributeProtoInt    = 2 // INT
	AttributeProtoString = 3 // STRING
	AttributeProtoFloats = 6 // FLOATS
	AttributeProtoInts   = 7 // INTS
)

// Attr returns the named attribute of the node, or nil.
func (n *NodeProto) Attr(name string) *AttributeProto {
	for i := range n.Attributes {
		if n.Attributes[i].Name == name {
			return &n.Attributes[i]
		}
	}
	return nil
}
