package snapdu

import "errors"

// Standard engine errors, backend errors live in the data package.
var (
	ErrMissingRepositoryID = errors.New("snapdu: repository config carries no id")
	ErrInvalidExclude      = errors.New("snapdu: invalid exclude pattern")
	ErrInvalidOption       = errors.New("snapdu: invalid option")
)
