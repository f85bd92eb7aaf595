package model

// Location is where a serialized item currently is.
type Location string

// Item locations.
const (
	LocationWarehouse    Location = "warehouse"
	LocationCustomer     Location = "customer"
	LocationTechnician   Location = "technician"
	LocationManufacturer Location = "manufacturer"
	LocationRetail       Location = "retail"
	LocationOutsourced   Location = "outsourced"
	LocationDisposed     Location = "disposed"
	LocationInTransit    Location = "in_transit"
)

// Locations lists every known location.
var Locations = []Location{
	LocationWarehouse,
	LocationCustomer,
	LocationTechnician,
	LocationManufacturer,
	LocationRetail,
	LocationOutsourced,
	LocationDisposed,
	LocationInTransit,
}

// CheckoutDestinations are the locations an item may be sent towards.
var CheckoutDestinations = []Location{
	LocationCustomer,
	LocationTechnician,
	LocationManufacturer,
	LocationRetail,
	LocationOutsourced,
	LocationDisposed,
	LocationWarehouse,
}

// ArrivalLocations are the locations an in-transit item may arrive at.
var ArrivalLocations = []Location{
	LocationWarehouse,
	LocationCustomer,
	LocationTechnician,
	LocationManufacturer,
	LocationRetail,
	LocationOutsourced,
	LocationDisposed,
}

// Valid reports whether l is a known location.
func (l Location) Valid() bool {
	for _, known := range Locations {
		if l == known {
			return true
		}
	}
	return false
}

// LocationStrings returns locs as plain strings, for enum validation.
func LocationStrings(locs []Location) []string {
	out := make([]string, len(locs))
	for i, l := range locs {
		out[i] = string(l)
	}
	return out
}

// Item statuses.
const (
	ItemStatusInStock   = "in_stock"
	ItemStatusInTransit = "in_transit"
	ItemStatusSold      = "sold"
	ItemStatusDefective = "defective"
	ItemStatusReturned  = "returned"
)

// Product is the catalogue entry a serialized item is an instance of.
type Product struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	SKU     string `json:"sku,omitempty"`
	Barcode string `json:"barcode,omitempty"`
	Brand   string `json:"brand,omitempty"`
	Model   string `json:"model,omitempty"`
}

// SerializedItem is a physically trackable unit.
type SerializedItem struct {
	ID              string   `json:"id"`
	SerialNumber    string   `json:"serial_number"`
	Barcode         string   `json:"barcode,omitempty"`
	Status          string   `json:"status"`
	CurrentLocation Location `json:"current_location"`
	ProductID       string   `json:"product_id,omitempty"`
	Product         *Product `json:"product,omitempty"`
}

// InTransit reports whether the item has been checked out but not yet
// checked in. Such an item can only be checked in.
func (it *SerializedItem) InTransit() bool {
	return it.CurrentLocation == LocationInTransit
}
