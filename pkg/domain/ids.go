// Package domain holds the typed identifiers shared across modules. Keeping
// them in one place prevents services from passing bare strings or UUIDs and
// mixing up which entity an ID belongs to.
package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// PrincipalID identifies an authenticatable entity (user, admin, ...).
type PrincipalID uuid.UUID

// NilPrincipalID is the zero PrincipalID.
var NilPrincipalID = PrincipalID(uuid.Nil)

// NewPrincipalID returns a random PrincipalID.
func NewPrincipalID() PrincipalID {
	return PrincipalID(uuid.New())
}

// ParsePrincipalID parses a UUID string into a PrincipalID.
func ParsePrincipalID(s string) (PrincipalID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return PrincipalID{}, fmt.Errorf("parse principal id: %w", err)
	}
	return PrincipalID(u), nil
}

// IsNil reports whether the ID is the zero UUID.
func (id PrincipalID) IsNil() bool {
	return uuid.UUID(id) == uuid.Nil
}

func (id PrincipalID) String() string {
	return uuid.UUID(id).String()
}

// RecordID identifies an audit ledger record. IDs are assigned by the store
// at append time and are strictly increasing, so a higher ID always means a
// later append. That property breaks timestamp ties in ledger queries.
type RecordID int64

// PrincipalKind is the logical key for an authenticatable type, resolved to a
// concrete store through the principal registry at startup. Examples: "user",
// "admin".
type PrincipalKind string

// KindDefault is the registry key used when a caller does not name a kind.
const KindDefault PrincipalKind = "user"

func (k PrincipalKind) String() string { return string(k) }
