package onnx

import (
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers from onnx.proto.
const (
	// ModelProto
	fieldModelIRVersion       = 1
	fieldModelProducerName    = 2
	fieldModelProducerVersion = 3
	fieldModelDomain          = 4
	fieldModelVersion         = 5
	fieldModelDocString       = 6
	fieldModelGraph           = 7
	fieldModelOpsetImport     = 8

	// GraphProto
	fieldGraphNode        = 1
	fieldGraphName        = 2
	fieldGraphInitializer = 5
	fieldGraphInput       = 11
	fieldGraphOutput      = 12

	// NodeProto
	fieldNodeInput     = 1
	fieldNodeOutput    = 2
	fieldNodeName      = 3
	fieldNodeOpType    = 4
	fieldNodeAttribute = 5
	fieldNodeDomain    = 7

	// AttributeProto
	fieldAttrName   = 1
	fieldAttrF      = 2
	fieldAttrI      = 3
	fieldAttrS      = 4
	fieldAttrFloats = 7
	fieldAttrInts   = 8
	fieldAttrType   = 20

	// TensorProto
	fieldTensorDims      = 1
	fieldTensorDataType  = 2
	fieldTensorFloatData = 4
	fieldTensorInt64Data = 7
	fieldTensorName      = 8
	fieldTensorRawData   = 9

	// ValueInfoProto, TypeProto and friends
	fieldValueInfoName   = 1
	fieldValueInfoType   = 2
	fieldTypeTensorType  = 1
	fieldTensorTypeElem  = 1
	fieldTensorTypeShape = 2
	fieldShapeDim        = 1
	fieldDimValue        = 1
	fieldDimParam        = 2
	fieldOpsetDomain     = 1
	fieldOpsetVersion    = 2
)

// Marshal encodes the model in protobuf wire format.
func Marshal(m *ModelProto) []byte {
	var b []byte
	b = appendVarintField(b, fieldModelIRVersion, uint64(m.IRVersion))
	b = appendStringField(b, fieldModelProducerName, m.ProducerName)
	b = appendStringField(b, fieldModelProducerVersion, m.ProducerVersion)
	b = appendStringField(b, fieldModelDomain, m.Domain)
	if m.ModelVersion != 0 {
		b = appendVarintField(b, fieldModelVersion, uint64(m.ModelVersion))
	}
	b = appendStringField(b, fieldModelDocString, m.DocString)
	if m.Graph != nil {
		b = appendMessage(b, fieldModelGraph, marshalGraph(m.Graph))
	}
	for _, op := range m.OpsetImport {
		var sub []byte
		sub = appendStringField(sub, fieldOpsetDomain, op.Domain)
		sub = appendVarintField(sub, fieldOpsetVersion, uint64(op.Version))
		b = appendMessage(b, fieldModelOpsetImport, sub)
	}
	return b
}

func marshalGraph(g *GraphProto) []byte {
	var b []byte
	for i := range g.Nodes {
		b = appendMessage(b, fieldGraphNode, marshalNode(&g.Nodes[i]))
	}
	b = appendStringField(b, fieldGraphName, g.Name)
	for i := range g.Initializers {
		b = appendMessage(b, fieldGraphInitializer, marshalTensor(&g.Initializers[i]))
	}
	for i := range g.Inputs {
		b = appendMessage(b, fieldGraphInput, marshalValueInfo(&g.Inputs[i]))
	}
	for i := range g.Outputs {
		b = appendMessage(b, fieldGraphOutput, marshalValueInfo(&g.Outputs[i]))
	}
	return b
}

func marshalNode(n *NodeProto) []byte {
	var b []byte
	for _, in := range n.Inputs {
		b = protowire.AppendTag(b, fieldNodeInput, protowire.BytesType)
		b = protowire.AppendString(b, in)
	}
	for _, out := range n.Outputs {
		b = protowire.AppendTag(b, fieldNodeOutput, protowire.BytesType)
		b = protowire.AppendString(b, out)
	}
	b = appendStringField(b, fieldNodeName, n.Name)
	b = appendStringField(b, fieldNodeOpType, n.OpType)
	for i := range n.Attributes {
		b = appendMessage(b, fieldNodeAttribute, marshalAttribute(&n.Attributes[i]))
	}
	b = appendStringField(b, fieldNodeDomain, n.Domain)
	return b
}

func marshalAttribute(a *AttributeProto) []byte {
	var b []byte
	b = appendStringField(b, fieldAttrName, a.Name)
	switch a.Type {
	case AttributeProtoFloat:
		b = protowire.AppendTag(b, fieldAttrF, protowire.Fixed32Type)
		b = protowire.AppendFixed32(b, math.Float32bits(a.F))
	case AttributeProtoInt:
		b = appendVarintField(b, fieldAttrI, uint64(a.I))
	case AttributeProtoString:
		b = protowire.AppendTag(b, fieldAttrS, protowire.BytesType)
		b = protowire.AppendBytes(b, a.S)
	case AttributeProtoFloats:
		for _, f := range a.Floats {
			b = protowire.AppendTag(b, fieldAttrFloats, protowire.Fixed32Type)
			b = protowire.AppendFixed32(b, math.Float32bits(f))
		}
	case AttributeProtoInts:
		for _, v := range a.Ints {
			b = appendVarintField(b, fieldAttrInts, uint64(v))
		}
	}
	b = appendVarintField(b, fieldAttrType, uint64(a.Type))
	return b
}

func marshalTensor(t *TensorProto) []byte {
	var b []byte
	for _, d := range t.Dims {
		b = appendVarintField(b, fieldTensorDims, uint64(d))
	}
	b = appendVarintField(b, fieldTensorDataType, uint64(t.DataType))
	for _, f := range t.FloatData {
		b = protowire.AppendTag(b, fieldTensorFloatData, protowire.Fixed32Type)
		b = protowire.AppendFixed32(b, math.Float32bits(f))
	}
	for _, v := range t.Int64Data {
		b = appendVarintField(b, fieldTensorInt64Data, uint64(v))
	}
	b = appendStringField(b, fieldTensorName, t.Name)
	if len(t.RawData) > 0 {
		b = protowire.AppendTag(b, fieldTensorRawData, protowire.BytesType)
		b = protowire.AppendBytes(b, t.RawData)
	}
	return b
}

func marshalValueInfo(v *ValueInfoProto) []byte {
	var b []byte
	b = appendStringField(b, fieldValueInfoName, v.Name)
	if v.Type != nil && v.Type.TensorType != nil {
		tt := v.Type.TensorType
		var tensorType []byte
		tensorType = appendVarintField(tensorType, fieldTensorTypeElem, uint64(tt.ElemType))
		if tt.Shape != nil {
			var shape []byte
			for _, d := range tt.Shape.Dims {
				var dim []byte
				if d.DimParam != "" {
					dim = appendStringField(dim, fieldDimParam, d.DimParam)
				} else {
					dim = appendVarintField(dim, fieldDimValue, uint64(d.DimValue))
				}
				shape = appendMessage(shape, fieldShapeDim, dim)
			}
			tensorType = appendMessage(tensorType, fieldTensorTypeShape, shape)
		}
		typ := appendMessage(nil, fieldTypeTensorType, tensorType)
		b = appendMessage(b, fieldValueInfoType, typ)
	}
	return b
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// appendStringField skips empty strings, matching proto3 presence rules.
func appendStringField(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}
