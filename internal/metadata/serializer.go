package metadata

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Serializer renders a tree into a metadata document.
type Serializer interface {
	Serialize(tree Tree) ([]byte, error)
	// Extension is the file extension of produced documents.
	Extension() string
}

// JSONSerializer writes trees as JSON documents with prefixed keys.
type JSONSerializer struct {
	Indent string
}

func (s JSONSerializer) Extension() string { return ".json" }

// Serialize renders properties in tree order under a namespace declaration.
func (s JSONSerializer) Serialize(tree Tree) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if err := writeMember(&buf, "@namespaces", map[string]string{tree.Prefix: tree.NamespaceURI}); err != nil {
		return nil, err
	}
	for _, prop := range tree.Properties {
		buf.WriteByte(',')
		if err := writeMember(&buf, tree.Prefix+":"+prop.Name, encodable(prop.Value)); err != nil {
			return nil, fmt.Errorf("serialize %s: %w", prop.Name, err)
		}
	}
	buf.WriteByte('}')

	if s.Indent == "" {
		return buf.Bytes(), nil
	}
	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", s.Indent); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func writeMember(buf *bytes.Buffer, key string, value any) error {
	k, err := json.Marshal(key)
	if err != nil {
		return err
	}
	v, err := json.Marshal(value)
	if err != nil {
		return err
	}
	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(v)
	return nil
}

// MarshalJSON keeps field order.
func (s Struct) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeMember(&buf, f.Name, f.Value); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func encodable(value any) any {
	if value == nil {
		return []any{}
	}
	return value
}
