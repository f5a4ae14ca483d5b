package gtfs

import "fmt"

// DataIntegrityError reports a required table that is missing from the
// archive or cannot be parsed. No index is produced when it is returned.
type DataIntegrityError struct {
	Table string
	Err   error
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("gtfs %s: %v", e.Table, e.Err)
}

func (e *DataIntegrityError) Unwrap() error { return e.Err }

func integrityErr(table string, format string, args ...any) error {
	return &DataIntegrityError{Table: table, Err: fmt.Errorf(format, args...)}
}
