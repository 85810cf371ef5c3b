package goauth

import (
	auth "github.com/goliatone/go-auth"
	"github.com/goliatone/go-enroll/pkg/types"
)

// IdentityToDomain converts the go-auth user model into the go-enroll
// Identity view.
func IdentityToDomain(user *auth.User) *types.Identity {
	return toIdentity(user)
}

func toIdentity(user *auth.User) *types.Identity {
	if user == nil {
		return nil
	}
	return &types.Identity{
		ID:        user.ID,
		Email:     user.Email,
		Confirmed: user.EmailValidated,
		Metadata:  copyMetadata(user.Metadata),
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
		Raw:       user,
	}
}

func copyMetadata(origin map[string]any) map[string]any {
	if len(origin) == 0 {
		return nil
	}
	out := make(map[string]any, len(origin))
	for k, v := range origin {
		out[k] = v
	}
	return out
}
