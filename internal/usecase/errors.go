package usecase

import (
	"errors"

	"github.com/arklim/identity-adapter/internal/core/domain"
	"github.com/arklim/identity-adapter/internal/repository"
)

var (
	// ErrStoreRequired indicates a service was built without an account store.
	ErrStoreRequired = errors.New("account store is required")
	// ErrExternalIdentityRequired indicates a missing or incomplete federated login assertion.
	ErrExternalIdentityRequired = errors.New("external identity is required")
	// ErrExternalLoginsNotSupported indicates the store cannot link accounts to external providers.
	ErrExternalLoginsNotSupported = errors.New("external logins not supported")
	// ErrSubjectRequired indicates the subject identifier is missing.
	ErrSubjectRequired = errors.New("subject is required")
	// ErrInvalidSubject indicates the subject does not resolve to an account.
	ErrInvalidSubject = errors.New("invalid subject")
	// ErrMissingProperty indicates a mandatory create property was not submitted.
	ErrMissingProperty = errors.New("required property missing")
	// ErrRolesNotSupported indicates no role store is configured.
	ErrRolesNotSupported = errors.New("roles not supported")
	// ErrClaimsNotSupported indicates the store does not keep per-account claims.
	ErrClaimsNotSupported = errors.New("claims not supported")
	// ErrQueryNotSupported indicates the store cannot list accounts.
	ErrQueryNotSupported = errors.New("store does not support querying users")
)

// invalidSubjectMessage is the soft error returned when an administrative operation targets
// an unknown account or role.
const invalidSubjectMessage = "Invalid subject"

// softResult folds a store error into a Result: rejections become failures, anything else
// is returned as an error.
func softResult(err error) (domain.Result, error) {
	if err == nil {
		return domain.Success(), nil
	}
	if rej, ok := repository.AsRejection(err); ok {
		return domain.Failure(rej.Messages...), nil
	}
	return domain.Result{}, err
}

func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}
