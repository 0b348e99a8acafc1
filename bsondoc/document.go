package bsondoc

// Document is an ordered sequence of fields. Field order is
// significant: it is preserved byte-for-byte across encode/decode
// (this serialize/deserialize round-trip law) and drives array
// index semantics.
type Document struct {
	Fields []Field
}

// New builds a Document from field pairs in call order.
func New(fields ...Field) *Document {
	return &Document{Fields: fields}
}

// F is a convenience constructor for a Field.
func F(name string, v Value) Field {
	return Field{Name: name, Value: v}
}

// Get returns the first field with the given name and whether it was
// found. Documents are not required to have unique field names (the
// wire format does not enforce it) so Get intentionally returns the
// first match, mirroring typical document-store lookup semantics.
func (d *Document) Get(name string) (Value, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Set replaces the first field with the given name, or appends a new
// one if absent.
func (d *Document) Set(name string, v Value) {
	for i := range d.Fields {
		if d.Fields[i].Name == name {
			d.Fields[i].Value = v
			return
		}
	}
	d.Fields = append(d.Fields, Field{Name: name, Value: v})
}

// IsArray reports whether v holds an array value.
func IsArray(v Value) bool {
	return v.Type == TypeArray && v.Array != nil
}

// Len returns the number of fields (array elements, for an array
// value's Document representation).
func (d *Document) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Fields)
}

// Clone returns a deep-enough copy for mutation isolation: the Fields
// slice is copied, and nested Document/Array pointers are recursively
// cloned so mutating the copy never touches the original's storage.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := &Document{Fields: make([]Field, len(d.Fields))}
	for i, f := range d.Fields {
		out.Fields[i] = f
		if f.Value.Document != nil {
			out.Fields[i].Value.Document = f.Value.Document.Clone()
		}
		if f.Value.Array != nil {
			out.Fields[i].Value.Array = f.Value.Array.Clone()
		}
	}
	return out
}
