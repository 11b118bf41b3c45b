package aws

import (
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/iam"
	"github.com/aws/aws-sdk-go/service/redshift"

	"github.com/sparkify/dwh/pkg/util/wait"
)

var (
	// ErrConflict is matched by errors returned when a create call finds the
	// resource already exists, usually because another run created it
	// between our lookup and our create.
	ErrConflict = errors.New("resource already exists")

	// ErrStillPending is matched by errors returned when a cluster did not
	// reach the expected state within the configured backoff.
	ErrStillPending = wait.ErrStillPending
)

// ConflictError is returned for unexpected already-exists responses.
type ConflictError struct {
	Kind string
	Name string
	Err  error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s already exists: %v", e.Kind, e.Name, e.Err)
}

func (e *ConflictError) Unwrap() error {
	return e.Err
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

func errorCode(err error) string {
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		return aerr.Code()
	}
	return ""
}

// IsNotFound reports whether err is the control plane's "resource absent"
// response for a role or cluster lookup.
func IsNotFound(err error) bool {
	switch errorCode(err) {
	case iam.ErrCodeNoSuchEntityException, redshift.ErrCodeClusterNotFoundFault:
		return true
	}
	return false
}

func isAlreadyExists(err error) bool {
	switch errorCode(err) {
	case iam.ErrCodeEntityAlreadyExistsException, redshift.ErrCodeClusterAlreadyExistsFault:
		return true
	}
	return false
}
