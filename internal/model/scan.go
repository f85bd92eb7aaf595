package model

// ScanType tells the backend which entity class a code is resolved against.
type ScanType string

// Scan types.
const (
	ScanTypeProduct        ScanType = "product"
	ScanTypeSerializedItem ScanType = "serialized_item"
)

// Valid reports whether t is a known scan type.
func (t ScanType) Valid() bool {
	return t == ScanTypeProduct || t == ScanTypeSerializedItem
}

// ScanResolution is the outcome of resolving a scanned code. It is either
// *Found or *NotFound.
type ScanResolution interface {
	resolution()
}

// Found is a code the backend resolved to an entity. Exactly one of Product
// and Item is set, matching ItemType.
type Found struct {
	Code     string
	ItemType ScanType
	Product  *Product
	Item     *SerializedItem
}

// NotFound is a code the backend could not resolve.
type NotFound struct {
	Code    string
	Message string
}

func (*Found) resolution()    {}
func (*NotFound) resolution() {}
