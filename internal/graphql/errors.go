package graphql

import (
	"errors"
	"fmt"
)

// APIError is a response that arrived but carries an error envelope: either
// an "errors" array or a missing "data" object. These are retried alongside
// transport failures, since the upstream intermittently sheds load this way.
type APIError struct {
	Status int
	Errors []any
}

func (e *APIError) Error() string {
	if len(e.Errors) > 0 {
		return fmt.Sprintf("graphql: API returned errors: %v", e.Errors)
	}
	return fmt.Sprintf("graphql: response missing 'data' (status %d)", e.Status)
}

// ContractError is a structural mismatch between the configured root or
// page-info paths and the response shape. Retrying cannot fix a shape
// mismatch, so these fail the window immediately.
type ContractError struct {
	RootPath     string
	PageInfoPath string
	Reason       string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("graphql: malformed page contract (%s): root_path=%s page_info_path=%s",
		e.Reason, e.RootPath, e.PageInfoPath)
}

// PaginationLimitError signals a pagination loop that ran past max_pages,
// which means either a runaway API cursor or a misconfigured limit.
type PaginationLimitError struct {
	MaxPages int
}

func (e *PaginationLimitError) Error() string {
	return fmt.Sprintf("graphql: pagination exceeded max pages (%d)", e.MaxPages)
}

// IsContractError reports whether err is a page-contract violation.
// Uses errors.As to handle wrapped errors.
func IsContractError(err error) bool {
	var ce *ContractError
	return errors.As(err, &ce)
}

// IsPaginationLimitError reports whether err is a pagination-limit failure.
func IsPaginationLimitError(err error) bool {
	var pe *PaginationLimitError
	return errors.As(err, &pe)
}
