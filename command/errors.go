package command

import (
	"errors"

	"github.com/goliatone/go-enroll/pkg/types"
)

var (
	// ErrActorRequired indicates an actor reference was not supplied.
	ErrActorRequired = types.ErrActorRequired
	// ErrRowsRequired occurs when the saga is invoked without input rows. An
	// empty batch is a terminal failure for the whole job, not a per-row one.
	ErrRowsRequired = errors.New("go-enroll: provisioning rows required")
	// ErrJobIDRequired indicates the bulk job identifier is missing.
	ErrJobIDRequired = types.ErrJobIDRequired
	// ErrOrgRequired indicates the owning organization was not supplied.
	ErrOrgRequired = errors.New("go-enroll: organization required")
	// ErrProvisionDisabled indicates bulk provisioning is disabled via feature gate.
	ErrProvisionDisabled = errors.New("go-enroll: bulk provisioning disabled")
	// ErrEmailRequired indicates an identity email address was missing.
	ErrEmailRequired = errors.New("go-enroll: email required")
	// ErrNameRequired indicates a row was missing the student name.
	ErrNameRequired = errors.New("go-enroll: name required")
	// ErrInvalidEmail indicates the email failed shape validation.
	ErrInvalidEmail = errors.New("go-enroll: invalid email address")
	// ErrRoleRequired indicates a link mutation omitted the role.
	ErrRoleRequired = errors.New("go-enroll: role required")
	// ErrUnknownRole indicates the role is outside the closed enumeration.
	ErrUnknownRole = errors.New("go-enroll: unknown role")
)

// ReasonAlreadyExists is the per-row failure reason recorded for duplicate
// emails, whether caught by the duplicate index or by the backing store under
// a race the index missed.
const ReasonAlreadyExists = "already exists"

// ReasonProvisionFailed is recorded for store or infrastructure failures the
// saga cannot classify. The raw cause stays in the wrapped error and logs;
// the ledger reason stays stable so operators never see driver internals.
const ReasonProvisionFailed = "provisioning failed"

// ReasonSeedUnavailable is recorded for every row when the duplicate index
// cannot be seeded and the whole batch fails before any row is attempted.
const ReasonSeedUnavailable = "duplicate check unavailable"
