package errors

// PostgreSQL Error Codes (SQLSTATE)
// Based on PostgreSQL error codes: https://www.postgresql.org/docs/current/errcodes-appendix.html

// Class 08 - Connection Exception
const (
	ConnectionException = "08000"
	ConnectionFailure   = "08006"
)

// Class 0A - Feature Not Supported
const (
	FeatureNotSupported = "0A000"
)

// Class 22 - Data Exception
const (
	DataException             = "22000"
	InvalidParameterValue     = "22023"
	InvalidTextRepresentation = "22P02"
)

// Class 3F - Invalid Schema Name
const (
	InvalidSchemaName = "3F000"
)

// Class 42 - Syntax Error or Access Rule Violation
const (
	SyntaxError            = "42601"
	DuplicateColumn        = "42701"
	AmbiguousColumn        = "42702"
	UndefinedColumn        = "42703"
	UndefinedObject        = "42704"
	DuplicateObject        = "42710"
	DuplicateSchema        = "42P06"
	UndefinedTable         = "42P01"
	DuplicateTable         = "42P07"
	InvalidTableDefinition = "42P16"
)

// Class F0 - Configuration File Error
const (
	ConfigFileError = "F0000"
)

// Class XX - Internal Error
const (
	InternalError = "XX000"
)
