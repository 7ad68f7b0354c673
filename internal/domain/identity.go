package domain

import "strings"

// IdentityKind distinguishes anonymous from authenticated users.
type IdentityKind int

const (
	// KindGuest is an anonymous user scoped to the running process.
	KindGuest IdentityKind = iota
	// KindAccount is a user backed by a durable account.
	KindAccount
)

func (k IdentityKind) String() string {
	switch k {
	case KindAccount:
		return "account"
	default:
		return "guest"
	}
}

// Identity is the current user context.
//
// A Guest has no stable identifier. An Account is identified by its
// normalized email address.
type Identity struct {
	Kind IdentityKind `json:"kind"`

	// AccountID is the normalized email. Empty for guests.
	AccountID string `json:"account_id,omitempty"`

	// DisplayName is shown in greetings. Empty for guests.
	DisplayName string `json:"display_name,omitempty"`
}

// Guest returns the anonymous identity.
func Guest() Identity {
	return Identity{Kind: KindGuest}
}

// Account returns an authenticated identity for the given email and name.
func Account(email, displayName string) Identity {
	return Identity{
		Kind:        KindAccount,
		AccountID:   NormalizeEmail(email),
		DisplayName: displayName,
	}
}

// IsGuest reports whether the identity is anonymous.
func (i Identity) IsGuest() bool { return i.Kind == KindGuest }

// IsAccount reports whether the identity is authenticated.
func (i Identity) IsAccount() bool { return i.Kind == KindAccount }

// Same reports whether two identities own the same bookmark set.
// All guests share the one in-memory guest set of the process.
func (i Identity) Same(other Identity) bool {
	if i.Kind != other.Kind {
		return false
	}
	return i.AccountID == other.AccountID
}

func (i Identity) String() string {
	if i.IsGuest() {
		return "guest"
	}
	return "account(" + i.AccountID + ")"
}

// NormalizeEmail trims and lower-cases an email so it can serve as an account key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
