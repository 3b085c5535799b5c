// Package metadata shapes features into the namespaced property tree that
// is serialized into the asset's metadata document.
package metadata

// Namespace of the properties emitted by the worker.
const (
	NamespaceURI    = "https://ns.example.com/assetmeta/1.0/"
	NamespacePrefix = "assetmeta"
)

// Property names.
const (
	PropTags       = "tags"
	PropColorNames = "colorNames"
	PropWebColors  = "webColors"
	PropColors     = "colors"
)

// Field is a named value inside a struct property.
type Field struct {
	Name  string
	Value any
}

// Struct is an ordered list of fields.
type Struct []Field

// Property is a namespaced key holding either a []string or a []Struct.
type Property struct {
	Name  string
	Value any
}

// Tree is the ordered set of properties handed to a Serializer.
type Tree struct {
	NamespaceURI string
	Prefix       string
	Properties   []Property
}

// Lookup returns the value of the named property.
func (t Tree) Lookup(name string) (any, bool) {
	for _, p := range t.Properties {
		if p.Name == name {
			return p.Value, true
		}
	}
	return nil, false
}
