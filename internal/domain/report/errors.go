package report

import "errors"

var (
	ErrReportNotFound  = errors.New("report not found")
	ErrAlreadyResolved = errors.New("report already resolved")
	ErrInvalidAction   = errors.New("invalid resolve action")
	ErrDuplicateReport = errors.New("an open report for this site already exists")
)
