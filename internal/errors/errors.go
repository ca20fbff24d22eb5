package errors

import (
	"errors"
	"fmt"
)

// Error represents a PostgreSQL-compatible error with SQLSTATE code
type Error struct {
	Code       string // SQLSTATE code
	Message    string // Primary error message
	Detail     string // Optional detailed error message
	Hint       string // Optional hint message
	Schema     string // Schema name if applicable
	Table      string // Table name if applicable
	Column     string // Column name if applicable
	DataType   string // Data type name if applicable
	Constraint string // Constraint name if applicable
	Where      string // Context where error occurred
	cause      error
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s (SQLSTATE %s)", e.Message, e.Code)
	if e.Detail != "" {
		msg += " DETAIL: " + e.Detail
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// New creates a new Error with the given code and message
func New(code string, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new Error with a formatted message
func Newf(code string, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error that carries err as its cause.
func Wrap(err error, code string, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		cause:   err,
	}
}

// WithDetail adds detail to the error
func (e *Error) WithDetail(detail string) *Error {
	e.Detail = detail
	return e
}

// WithDetailf adds formatted detail to the error
func (e *Error) WithDetailf(format string, args ...interface{}) *Error {
	e.Detail = fmt.Sprintf(format, args...)
	return e
}

// WithHint adds a hint to the error
func (e *Error) WithHint(hint string) *Error {
	e.Hint = hint
	return e
}

// WithTable sets the table name
func (e *Error) WithTable(schema, table string) *Error {
	e.Schema = schema
	e.Table = table
	return e
}

// WithColumn sets the column name
func (e *Error) WithColumn(column string) *Error {
	e.Column = column
	return e
}

// WithConstraint sets the constraint name
func (e *Error) WithConstraint(constraint string) *Error {
	e.Constraint = constraint
	return e
}

// WithDataType sets the data type name
func (e *Error) WithDataType(dataType string) *Error {
	e.DataType = dataType
	return e
}

// WithWhere sets the context where the error occurred
func (e *Error) WithWhere(where string) *Error {
	e.Where = where
	return e
}

// Common error constructors

// UndefinedTableError creates an undefined table error
func UndefinedTableError(tableName string) *Error {
	return Newf(UndefinedTable, "relation \"%s\" does not exist", tableName).
		WithTable("", tableName)
}

// UndefinedColumnError creates an undefined column error
func UndefinedColumnError(columnName string, tableName string) *Error {
	return Newf(UndefinedColumn, "column \"%s\" does not exist", columnName).
		WithTable("", tableName).
		WithColumn(columnName)
}

// DuplicateTableError creates a duplicate table error
func DuplicateTableError(tableName string) *Error {
	return Newf(DuplicateTable, "relation \"%s\" already exists", tableName).
		WithTable("", tableName)
}

// InternalErrorf creates an internal error
func InternalErrorf(format string, args ...interface{}) *Error {
	return Newf(InternalError, format, args...)
}

// FeatureNotSupportedError creates a feature not supported error
func FeatureNotSupportedError(feature string) *Error {
	return Newf(FeatureNotSupported, "%s is not supported", feature)
}

// IsError checks if an error chain contains a QuantaOpt Error with a specific code
func IsError(err error, code string) bool {
	var qErr *Error
	if !errors.As(err, &qErr) {
		return false
	}
	return qErr.Code == code
}

// GetError attempts to extract a QuantaOpt Error from any error
func GetError(err error) *Error {
	if err == nil {
		return nil
	}
	var qErr *Error
	if errors.As(err, &qErr) {
		return qErr
	}
	// Wrap generic errors as internal errors
	return Wrap(err, InternalError, "internal error")
}
