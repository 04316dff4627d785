package domain

// ReferenceKind names a collection that products reference by name.
type ReferenceKind string

const (
	ReferenceCategory ReferenceKind = "category"
	ReferenceBrand    ReferenceKind = "brand"
)

// Valid reports whether k is a known reference kind.
func (k ReferenceKind) Valid() bool {
	return k == ReferenceCategory || k == ReferenceBrand
}

// Reference is a category or brand as seen by the catalog: an id and a name.
// Their own schema is owned elsewhere; this service only reads them.
type Reference struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
