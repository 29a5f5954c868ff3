package members

import "errors"

var (
	// ErrMemberExists indicates a sign-up with an email already in use
	ErrMemberExists = errors.New("member already exists")

	// ErrMemberNotFound indicates the member does not exist
	ErrMemberNotFound = errors.New("member not found")

	// ErrVerificationFailed indicates the email/password pair did not
	// match. Deliberately does not say which half was wrong.
	ErrVerificationFailed = errors.New("verification failed")

	// ErrAccountDisabled indicates the member's account is disabled
	ErrAccountDisabled = errors.New("account disabled")

	// ErrIncorrectPassword indicates the current password given for a
	// password change did not match
	ErrIncorrectPassword = errors.New("incorrect password")

	// ErrUnknownField indicates a profile update named a field outside
	// its view
	ErrUnknownField = errors.New("unknown profile field")
)
