package rbac

// Role constants. "sender" and "traveler" are positions relative to a
// request, not account types: any user may act on either side. "admin"
// is an account-level role resolved from the identity token.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Permission constants
const (
	PermPublishListing = "publish_listing"
	PermPublishParcel  = "publish_parcel"
	PermMakeOffer      = "make_offer"
	PermAcceptOffer    = "accept_offer"
	PermStartCheckout  = "start_checkout"
	PermMarkPickup     = "mark_pickup"
	PermConfirmDeliver = "confirm_delivery"
	PermOpenDispute    = "open_dispute"
	PermResolveDispute = "resolve_dispute"
)

// RolePermissions defines what each role can do. Dispute resolution is the
// single admin-only permission; everything else is further constrained by
// ownership checks inside the services.
var RolePermissions = map[string][]string{
	RoleUser: {
		PermPublishListing, PermPublishParcel, PermMakeOffer, PermAcceptOffer,
		PermStartCheckout, PermMarkPickup, PermConfirmDeliver, PermOpenDispute,
	},
	RoleAdmin: {
		PermPublishListing, PermPublishParcel, PermMakeOffer, PermAcceptOffer,
		PermStartCheckout, PermMarkPickup, PermConfirmDeliver, PermOpenDispute,
		PermResolveDispute,
	},
}

// HasPermission checks if a role has a specific permission.
func HasPermission(role, permission string) bool {
	perms, ok := RolePermissions[role]
	if !ok {
		return false
	}
	for _, p := range perms {
		if p == permission {
			return true
		}
	}
	return false
}

// IsAdminOperation reports whether the permission is reserved to admins.
func IsAdminOperation(permission string) bool {
	return permission == PermResolveDispute
}
