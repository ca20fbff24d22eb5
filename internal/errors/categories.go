package errors

// Category-specific error constructors for catalog, plan file and configuration handling

// Catalog errors
func DuplicateColumnError(columnName, tableName string) *Error {
	return Newf(DuplicateColumn, "column \"%s\" specified more than once", columnName).
		WithTable("", tableName).
		WithColumn(columnName)
}

func DuplicateConstraintError(constraint, tableName string) *Error {
	return Newf(DuplicateObject, "constraint %s already exists on relation \"%s\"", constraint, tableName).
		WithTable("", tableName).
		WithConstraint(constraint)
}

func MultiplePrimaryKeysError(tableName string) *Error {
	return Newf(InvalidTableDefinition, "multiple primary keys for table \"%s\" are not allowed", tableName).
		WithTable("", tableName)
}

func EmptyConstraintError(constraint, tableName string) *Error {
	return Newf(InvalidTableDefinition, "%s constraint on \"%s\" must name at least one column", constraint, tableName).
		WithTable("", tableName)
}

func UndefinedSchemaError(schemaName string) *Error {
	return Newf(InvalidSchemaName, "schema \"%s\" does not exist", schemaName).
		WithTable(schemaName, "")
}

func DuplicateSchemaError(schemaName string) *Error {
	return Newf(DuplicateSchema, "schema \"%s\" already exists", schemaName)
}

// Plan errors
func AmbiguousColumnError(columnName string) *Error {
	return Newf(AmbiguousColumn, "column reference \"%s\" is ambiguous", columnName).
		WithColumn(columnName)
}

func ColumnNotFoundError(columnName, tableName string) *Error {
	if tableName != "" {
		return Newf(UndefinedColumn, "column %s.%s does not exist", tableName, columnName).
			WithTable("", tableName).
			WithColumn(columnName)
	}
	return Newf(UndefinedColumn, "column \"%s\" does not exist", columnName).
		WithColumn(columnName)
}

func UnknownOperatorError(op string) *Error {
	return Newf(UndefinedObject, "unknown plan operator \"%s\"", op).
		WithHint("Supported operators: values, scan, filter, project, aggregate, join, sort, topn, limit.")
}

func UnknownRuleError(name string) *Error {
	return Newf(UndefinedObject, "unknown optimization rule \"%s\"", name)
}

func InvalidTypeError(typeName string) *Error {
	return Newf(UndefinedObject, "type \"%s\" does not exist", typeName).
		WithDataType(typeName)
}

func MalformedPlanError(where, msg string) *Error {
	return Newf(DataException, "malformed plan: %s", msg).
		WithWhere(where)
}

// Configuration errors
func InvalidConfigurationError(parameter, value string) *Error {
	return Newf(ConfigFileError, "invalid value for parameter \"%s\": \"%s\"", parameter, value)
}

func InvalidParameterValueError(parameter, value, reason string) *Error {
	return Newf(InvalidParameterValue, "invalid value for parameter \"%s\": \"%s\"", parameter, value).
		WithDetail(reason)
}

// Connection errors
func CatalogConnectionError(err error) *Error {
	return Wrap(err, ConnectionFailure, "could not load catalog from database")
}
