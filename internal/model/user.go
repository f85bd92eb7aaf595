package model

// User is the backend account a portal session acts on behalf of.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Portal roles.
const (
	RoleAdmin        = "admin"
	RoleTechnician   = "technician"
	RoleRetailer     = "retailer"
	RoleManufacturer = "manufacturer"
	RoleClient       = "client"
)

// CanUseWarehouse reports whether role may check serialized items in and out
// of the warehouse.
func CanUseWarehouse(role string) bool {
	return role == RoleAdmin || role == RoleTechnician
}

// CanUseBranch reports whether role may record retail branch dispatches and
// receipts.
func CanUseBranch(role string) bool {
	return role == RoleAdmin || role == RoleRetailer
}
