package types

import (
	"fmt"
	"strings"
)

// DataType represents a SQL data type
type DataType interface {
	// Name returns the SQL name of the type (e.g., "INTEGER", "TEXT")
	Name() string

	// IsValid checks if a value is valid for this type
	IsValid(v Value) bool
}

// scalarType is a named SQL type whose values are backed by a single Go type.
type scalarType struct {
	name  string
	valid func(data interface{}) bool
}

func (t *scalarType) Name() string {
	return t.name
}

func (t *scalarType) IsValid(v Value) bool {
	return v.Null || t.valid(v.Data)
}

func (t *scalarType) String() string {
	return t.name
}

// Built-in types.
var (
	Integer DataType = &scalarType{name: "INTEGER", valid: func(d interface{}) bool { _, ok := d.(int32); return ok }}
	BigInt  DataType = &scalarType{name: "BIGINT", valid: func(d interface{}) bool { _, ok := d.(int64); return ok }}
	Double  DataType = &scalarType{name: "DOUBLE PRECISION", valid: func(d interface{}) bool { _, ok := d.(float64); return ok }}
	Text    DataType = &scalarType{name: "TEXT", valid: func(d interface{}) bool { _, ok := d.(string); return ok }}
	Boolean DataType = &scalarType{name: "BOOLEAN", valid: func(d interface{}) bool { _, ok := d.(bool); return ok }}

	// Unknown is used for NULL literals and columns without a declared type.
	Unknown DataType = &scalarType{name: "UNKNOWN", valid: func(interface{}) bool { return false }}
)

// ParseDataType resolves a SQL type name, accepting the common aliases.
func ParseDataType(name string) (DataType, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "INT", "INT4", "INTEGER":
		return Integer, nil
	case "BIGINT", "INT8":
		return BigInt, nil
	case "DOUBLE", "DOUBLE PRECISION", "FLOAT8", "FLOAT":
		return Double, nil
	case "TEXT", "VARCHAR", "STRING":
		return Text, nil
	case "BOOL", "BOOLEAN":
		return Boolean, nil
	case "", "UNKNOWN":
		return Unknown, nil
	default:
		return nil, fmt.Errorf("unknown data type %q", name)
	}
}

// Value represents a SQL value that can be NULL
type Value struct {
	Data interface{}
	Null bool
}

// NewValue creates a non-null value
func NewValue(data interface{}) Value {
	return Value{Data: data, Null: false}
}

// NewNullValue creates a null value
func NewNullValue() Value {
	return Value{Data: nil, Null: true}
}

// NewIntegerValue creates an INTEGER value.
func NewIntegerValue(v int32) Value {
	return NewValue(v)
}

// NewBigIntValue creates a BIGINT value.
func NewBigIntValue(v int64) Value {
	return NewValue(v)
}

// NewDoubleValue creates a DOUBLE PRECISION value.
func NewDoubleValue(v float64) Value {
	return NewValue(v)
}

// NewTextValue creates a TEXT value.
func NewTextValue(v string) Value {
	return NewValue(v)
}

// NewBooleanValue creates a BOOLEAN value.
func NewBooleanValue(v bool) Value {
	return NewValue(v)
}

// IsNull returns true if the value is NULL
func (v Value) IsNull() bool {
	return v.Null
}

// String returns a string representation of the value
func (v Value) String() string {
	if v.Null {
		return "NULL"
	}
	if s, ok := v.Data.(string); ok {
		return "'" + strings.ReplaceAll(s, "'", "''") + "'"
	}
	return fmt.Sprintf("%v", v.Data)
}

// AsBool returns the value as a boolean
func (v Value) AsBool() (bool, error) {
	if v.Null {
		return false, fmt.Errorf("cannot convert NULL to bool")
	}
	if b, ok := v.Data.(bool); ok {
		return b, nil
	}
	return false, fmt.Errorf("cannot convert %T to bool", v.Data)
}

// Type returns the DataType of the value based on its underlying type
func (v Value) Type() DataType {
	if v.Null {
		return Unknown
	}
	switch v.Data.(type) {
	case int32:
		return Integer
	case int64:
		return BigInt
	case float64:
		return Double
	case string:
		return Text
	case bool:
		return Boolean
	default:
		return Unknown
	}
}
