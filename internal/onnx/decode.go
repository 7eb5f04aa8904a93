package onnx

import (
	"errors"
	"fmt"
	"math"
	"os"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrMalformed is returned when the input is not valid protobuf.
var ErrMalformed = errors.New("onnx: malformed protobuf")

// ParseFile parses an ONNX model from file.
func ParseFile(path string) (*ModelProto, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(data)
}

// Parse decodes the subset of ModelProto written by Marshal. Unknown
// fields are skipped.
func Parse(data []byte) (*ModelProto, error) {
	m := &ModelProto{}
	err := walk(data, func(num protowire.Number, typ protowire.Type, v field) error {
		switch num {
		case fieldModelIRVersion:
			m.IRVersion = int64(v.u)
		case fieldModelProducerName:
			m.ProducerName = string(v.b)
		case fieldModelProducerVersion:
			m.ProducerVersion = string(v.b)
		case fieldModelDomain:
			m.Domain = string(v.b)
		case fieldModelVersion:
			m.ModelVersion = int64(v.u)
		case fieldModelDocString:
			m.DocString = string(v.b)
		case fieldModelGraph:
			g, err := parseGraph(v.b)
			if err != nil {
				return err
			}
			m.Graph = g
		case fieldModelOpsetImport:
			var op OperatorSetID
			err := walk(v.b, func(num protowire.Number, _ protowire.Type, v field) error {
				switch num {
				case fieldOpsetDomain:
					op.Domain = string(v.b)
				case fieldOpsetVersion:
					op.Version = int64(v.u)
				}
				return nil
			})
			if err != nil {
				return err
			}
			m.OpsetImport = append(m.OpsetImport, op)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse model: %w", err)
	}
	return m, nil
}

func parseGraph(data []byte) (*GraphProto, error) {
	g := &GraphProto{}
	err := walk(data, func(num protowire.Number, _ protowire.Type, v field) error {
		switch num {
		case fieldGraphNode:
			n, err := parseNode(v.b)
			if err != nil {
				return err
			}
			g.Nodes = append(g.Nodes, *n)
		case fieldGraphName:
			g.Name = string(v.b)
		case fieldGraphInitializer:
			t, err := parseTensor(v.b)
			if err != nil {
				return err
			}
			g.Initializers = append(g.Initializers, *t)
		case fieldGraphInput, fieldGraphOutput:
			vi, err := parseValueInfo(v.b)
			if err != nil {
				return err
			}
			if num == fieldGraphInput {
				g.Inputs = append(g.Inputs, *vi)
			} else {
				g.Outputs = append(g.Outputs, *vi)
			}
		}
		return nil
	})
	return g, err
}

func parseNode(data []byte) (*NodeProto, error) {
	n := &NodeProto{}
	err := walk(data, func(num protowire.Number, _ protowire.Type, v field) error {
		switch num {
		case fieldNodeInput:
			n.Inputs = append(n.Inputs, string(v.b))
		case fieldNodeOutput:
			n.Outputs = append(n.Outputs, string(v.b))
		case fieldNodeName:
			n.Name = string(v.b)
		case fieldNodeOpType:
			n.OpType = string(v.b)
		case fieldNodeDomain:
			n.Domain = string(v.b)
		case fieldNodeAttribute:
			a, err := parseAttribute(v.b)
			if err != nil {
				return err
			}
			n.Attributes = append(n.Attributes, *a)
		}
		return nil
	})
	return n, err
}

func parseAttribute(data []byte) (*AttributeProto, error) {
	a := &AttributeProto{}
	err := walk(data, func(num protowire.Number, typ protowire.Type, v field) error {
		switch num {
		case fieldAttrName:
			a.Name = string(v.b)
		case fieldAttrType:
			a.Type = int32(v.u)
		case fieldAttrF:
			a.F = math.Float32frombits(uint32(v.u))
		case fieldAttrI:
			a.I = int64(v.u)
		case fieldAttrS:
			a.S = append([]byte(nil), v.b...)
		case fieldAttrFloats:
			vals, err := floats(typ, v)
			if err != nil {
				return err
			}
			a.Floats = append(a.Floats, vals...)
		case fieldAttrInts:
			vals, err := varints(typ, v)
			if err != nil {
				return err
			}
			a.Ints = append(a.Ints, vals...)
		}
		return nil
	})
	return a, err
}

func parseTensor(data []byte) (*TensorProto, error) {
	t := &TensorProto{}
	err := walk(data, func(num protowire.Number, typ protowire.Type, v field) error {
		switch num {
		case fieldTensorDims:
			vals, err := varints(typ, v)
			if err != nil {
				return err
			}
			t.Dims = append(t.Dims, vals...)
		case fieldTensorDataType:
			t.DataType = int32(v.u)
		case fieldTensorFloatData:
			vals, err := floats(typ, v)
			if err != nil {
				return err
			}
			t.FloatData = append(t.FloatData, vals...)
		case fieldTensorInt64Data:
			vals, err := varints(typ, v)
			if err != nil {
				return err
			}
			t.Int64Data = append(t.Int64Data, vals...)
		case fieldTensorName:
			t.Name = string(v.b)
		case fieldTensorRawData:
			t.RawData = append([]byte(nil), v.b...)
		}
		return nil
	})
	return t, err
}

func parseValueInfo(data []byte) (*ValueInfoProto, error) {
	vi := &ValueInfoProto{}
	err := walk(data, func(num protowire.Number, _ protowire.Type, v field) error {
		switch num {
		case fieldValueInfoName:
			vi.Name = string(v.b)
		case fieldValueInfoType:
			tt := &TensorTypeProto{}
			vi.Type = &TypeProto{TensorType: tt}
			return walk(v.b, func(num protowire.Number, _ protowire.Type, v field) error {
				if num != fieldTypeTensorType {
					return nil
				}
				return walk(v.b, func(num protowire.Number, _ protowire.Type, v field) error {
					switch num {
					case fieldTensorTypeElem:
						tt.ElemType = int32(v.u)
					case fieldTensorTypeShape:
						tt.Shape = &TensorShapeProto{}
						return walk(v.b, func(num protowire.Number, _ protowire.Type, v field) error {
							if num != fieldShapeDim {
								return nil
							}
							var d DimensionProto
							err := walk(v.b, func(num protowire.Number, _ protowire.Type, v field) error {
								switch num {
								case fieldDimValue:
									d.DimValue = int64(v.u)
								case fieldDimParam:
									d.DimParam = string(v.b)
								}
								return nil
							})
							tt.Shape.Dims = append(tt.Shape.Dims, d)
							return err
						})
					}
					return nil
				})
			})
		}
		return nil
	})
	return vi, err
}

// field holds a decoded value: u for varint and fixed types, b for bytes.
type field struct {
	u uint64
	b []byte
}

// walk calls fn for every field in a protobuf message.
func walk(data []byte, fn func(protowire.Number, protowire.Type, field) error) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		data = data[n:]

		var v field
		switch typ {
		case protowire.VarintType:
			v.u, n = protowire.ConsumeVarint(data)
		case protowire.Fixed32Type:
			var u32 uint32
			u32, n = protowire.ConsumeFixed32(data)
			v.u = uint64(u32)
		case protowire.Fixed64Type:
			v.u, n = protowire.ConsumeFixed64(data)
		case protowire.BytesType:
			v.b, n = protowire.ConsumeBytes(data)
		default:
			n = protowire.ConsumeFieldValue(num, typ, data)
		}
		if n < 0 {
			return fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(n))
		}
		data = data[n:]

		if err := fn(num, typ, v); err != nil {
			return err
		}
	}
	return nil
}

// varints decodes a repeated integer field in packed or unpacked form.
func varints(typ protowire.Type, v field) ([]int64, error) {
	if typ != protowire.BytesType {
		return []int64{int64(v.u)}, nil
	}
	var out []int64
	for b := v.b; len(b) > 0; {
		u, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: packed varint: %v", ErrMalformed, protowire.ParseError(n))
		}
		out = append(out, int64(u))
		b = b[n:]
	}
	return out, nil
}

// floats decodes a repeated float field in packed or unpacked form.
func floats(typ protowire.Type, v field) ([]float32, error) {
	if typ != protowire.BytesType {
		return []float32{math.Float32frombits(uint32(v.u))}, nil
	}
	if len(v.b)%4 != 0 {
		return nil, fmt.Errorf("%w: packed float length %d", ErrMalformed, len(v.b))
	}
	out := make([]float32, 0, len(v.b)/4)
	for b := v.b; len(b) > 0; {
		u, n := protowire.ConsumeFixed32(b)
		out = append(out, math.Float32frombits(u))
		b = b[n:]
	}
	return out, nil
}
