package domain

// Role is the caller's role label as issued by the external auth service.
type Role string

const (
	RoleCustomer       Role = "customer"
	RoleStaff          Role = "staff"
	RoleInventoryClerk Role = "inventory-clerk"
	RoleAdmin          Role = "admin"
	RoleOwner          Role = "owner"
)

// ValidRoles returns every role.
func ValidRoles() []Role {
	return []Role{RoleCustomer, RoleStaff, RoleInventoryClerk, RoleAdmin, RoleOwner}
}

// IsValidRole reports whether r is a known role.
func IsValidRole(r string) bool {
	for _, v := range ValidRoles() {
		if string(v) == r {
			return true
		}
	}
	return false
}

// Permission is a named capability.
type Permission string

const (
	PermViewProducts        Permission = "view:products"
	PermManageProducts      Permission = "manage:products"
	PermManageTaxonomy      Permission = "manage:taxonomy"
	PermViewInventory       Permission = "view:inventory"
	PermAdjustInventory     Permission = "adjust:inventory"
	PermPlaceOrders         Permission = "place:orders"
	PermCreateManualOrders  Permission = "create:manual_orders"
	PermApplyDiscounts      Permission = "apply:discounts"
	PermViewOwnOrders       Permission = "view:own_orders"
	PermViewOrders          Permission = "view:orders"
	PermUpdateOrderStatus   Permission = "update:order_status"
	PermOverrideOrderStatus Permission = "override:order_status"
	PermCancelOrders        Permission = "cancel:orders"
	PermCancelOwnOrders     Permission = "cancel:own_orders"
	PermRequestRefunds      Permission = "request:refunds"
	PermProcessRefunds      Permission = "process:refunds"
	PermViewReports         Permission = "view:reports"
	PermManageUsers         Permission = "manage:users"
)

var staffPermissions = []Permission{
	PermViewProducts,
	PermViewInventory,
	PermCreateManualOrders,
	PermApplyDiscounts,
	PermViewOrders,
	PermUpdateOrderStatus,
	PermCancelOrders,
}

var adminPermissions = append(append([]Permission{}, staffPermissions...),
	PermAdjustInventory,
	PermManageProducts,
	PermManageTaxonomy,
	PermOverrideOrderStatus,
	PermProcessRefunds,
	PermViewReports,
)

// rolePermissions is static configuration, not per-user data.
var rolePermissions = map[Role]map[Permission]struct{}{
	RoleCustomer: setOf(
		PermViewProducts,
		PermPlaceOrders,
		PermViewOwnOrders,
		PermCancelOwnOrders,
		PermRequestRefunds,
	),
	RoleStaff: setOf(staffPermissions...),
	RoleInventoryClerk: setOf(
		PermViewProducts,
		PermViewInventory,
		PermAdjustInventory,
		PermViewOrders,
		PermUpdateOrderStatus,
		PermCancelOrders,
	),
	RoleAdmin: setOf(adminPermissions...),
	RoleOwner: setOf(append(append([]Permission{}, adminPermissions...), PermManageUsers)...),
}

func setOf(perms ...Permission) map[Permission]struct{} {
	s := make(map[Permission]struct{}, len(perms))
	for _, p := range perms {
		s[p] = struct{}{}
	}
	return s
}

// HasPermission reports whether role grants perm. Unknown roles grant nothing.
func HasPermission(role Role, perm Permission) bool {
	_, ok := rolePermissions[role][perm]
	return ok
}

// HasAnyPermission reports whether role grants at least one of perms.
func HasAnyPermission(role Role, perms ...Permission) bool {
	for _, p := range perms {
		if HasPermission(role, p) {
			return true
		}
	}
	return false
}

// HasAllPermissions reports whether role grants every one of perms.
func HasAllPermissions(role Role, perms ...Permission) bool {
	for _, p := range perms {
		if !HasPermission(role, p) {
			return false
		}
	}
	return true
}

// Actor is the authenticated caller of a core operation.
type Actor struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
}

// Can is shorthand for HasPermission(a.Role, perm).
func (a Actor) Can(perm Permission) bool {
	return HasPermission(a.Role, perm)
}

// Require returns ErrPermissionDenied unless a holds perm.
func (a Actor) Require(perm Permission) error {
	if !a.Can(perm) {
		return ErrPermissionDenied
	}
	return nil
}

// IsPrivileged reports whether a may override the forward-only status flow.
func (a Actor) IsPrivileged() bool {
	return a.Can(PermOverrideOrderStatus)
}
