package identity

import "fmt"

// MinIdentities is the smallest sequence that fills every role.
const MinIdentities = 4

// InsufficientIdentitiesError means the sequence is too short to fill the
// emergency-admin and risk-admin slots.
type InsufficientIdentitiesError struct {
	Have int
	Need int
}

func (e *InsufficientIdentitiesError) Error() string {
	return fmt.Sprintf("role assignment needs %d identities, have %d", e.Need, e.Have)
}

// Roles maps ordinal positions of the identity sequence to protocol roles.
type Roles struct {
	Deployer       Identity
	PoolAdmin      Identity
	EmergencyAdmin Identity
	RiskAdmin      Identity
	// Users is every identity after the deployer, including the two admin slots.
	Users []Identity
}

// AssignRoles is purely positional:
//
//	ids[0]        deployer and pool admin
//	ids[1:]       users
//	users[1]      emergency admin (ids[2])
//	users[2]      risk admin      (ids[3])
//
// Tests assert on these addresses, so the order must never change.
func AssignRoles(ids []Identity) (Roles, error) {
	if len(ids) == 0 {
		return Roles{}, ErrNoIdentities
	}
	if len(ids) < MinIdentities {
		return Roles{}, &InsufficientIdentitiesError{Have: len(ids), Need: MinIdentities}
	}

	users := make([]Identity, len(ids)-1)
	copy(users, ids[1:])

	return Roles{
		Deployer:       ids[0],
		PoolAdmin:      ids[0],
		EmergencyAdmin: users[1],
		RiskAdmin:      users[2],
		Users:          users,
	}, nil
}
