package types

import "strings"

// Role enumerates the authorization roles an identity can hold. The set is
// closed: authorization links reject values outside of it.
type Role string

const (
	RoleStudent       Role = "student"
	RoleUniversity    Role = "university"
	RoleSoftwareHouse Role = "software_house"
	RoleGuest         Role = "guest"
	RoleAdmin         Role = "admin"
)

// RoleDefault is the lowest-privilege role, assumed when identity metadata
// carries no role hint.
const RoleDefault = RoleGuest

// ParseRole normalizes the supplied value into a known role. Unknown or empty
// values fall back to RoleDefault.
func ParseRole(value string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(value))) {
	case RoleStudent:
		return RoleStudent
	case RoleUniversity:
		return RoleUniversity
	case RoleSoftwareHouse:
		return RoleSoftwareHouse
	case RoleAdmin:
		return RoleAdmin
	case RoleGuest:
		return RoleGuest
	default:
		return RoleDefault
	}
}

// ValidRole reports whether the value names a member of the role enumeration.
func ValidRole(value string) bool {
	switch Role(strings.ToLower(strings.TrimSpace(value))) {
	case RoleStudent, RoleUniversity, RoleSoftwareHouse, RoleGuest, RoleAdmin:
		return true
	default:
		return false
	}
}

// ApprovalStatus tracks the review state recorded on an authorization link.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)
