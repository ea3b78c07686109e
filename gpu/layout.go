package gpu

import (
	"bytes"
	"encoding/binary"
	"reflect"
	"strconv"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/pkg/errors"
)

func parseFormat(name string) (wgpu.VertexFormat, error) {
	switch name {
	case "float2":
		return wgpu.VertexFormatFloat32x2, nil
	case "float3":
		return wgpu.VertexFormatFloat32x3, nil
	case "float4":
		return wgpu.VertexFormatFloat32x4, nil
	default:
		return 0, errors.Errorf("gpu: unsupported vertex format %q", name)
	}
}

// vertexBufferLayout derives a vertex buffer layout from the `layout:"vertex"`
// tagged fields of a struct. Untagged fields still advance the offset.
func vertexBufferLayout(vertexType any) (wgpu.VertexBufferLayout, error) {
	t := reflect.TypeOf(vertexType)
	if t.Kind() != reflect.Struct {
		return wgpu.VertexBufferLayout{}, errors.Errorf("gpu: vertex type %s is not a struct", t)
	}

	var attributes []wgpu.VertexAttribute
	var offset uint64
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Tag.Get("layout") == "vertex" {
			format, err := parseFormat(field.Tag.Get("format"))
			if err != nil {
				return wgpu.VertexBufferLayout{}, errors.Wrapf(err, "field %s", field.Name)
			}
			location, err := strconv.Atoi(field.Tag.Get("location"))
			if err != nil {
				return wgpu.VertexBufferLayout{}, errors.Wrapf(err, "gpu: field %s location", field.Name)
			}
			attributes = append(attributes, wgpu.VertexAttribute{
				ShaderLocation: uint32(location),
				Offset:         offset,
				Format:         format,
			})
		}
		offset += uint64(field.Type.Size())
	}

	return wgpu.VertexBufferLayout{
		ArrayStride: offset,
		StepMode:    wgpu.VertexStepModeVertex,
		Attributes:  attributes,
	}, nil
}

// uniformBytes flattens a struct of float32/uint32 fields, arrays and nested
// structs into little-endian bytes.
func uniformBytes(data any) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := writeUniform(reflect.ValueOf(data), buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeUniform(v reflect.Value, buf *bytes.Buffer) error {
	switch v.Kind() {
	case reflect.Array, reflect.Slice:
		for i := 0; i < v.Len(); i++ {
			if err := writeUniform(v.Index(i), buf); err != nil {
				return err
			}
		}
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if err := writeUniform(v.Field(i), buf); err != nil {
				return err
			}
		}
	case reflect.Float32, reflect.Uint32, reflect.Int32:
		return binary.Write(buf, binary.LittleEndian, v.Interface())
	default:
		return errors.Errorf("gpu: unsupported uniform type %s", v.Type())
	}
	return nil
}
