package schema

import "encoding/json"

// ValueSchema is a JSON Schema fragment describing the shape of a feature's
// value. It is built with the Null/Boolean/Number/... constructors below and
// serialized verbatim — it is a plain map under the hood so additional
// vocabulary keywords can be spliced in without widening this type.
type ValueSchema map[string]interface{}

// MarshalJSON renders the schema as its underlying JSON object.
func (v ValueSchema) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}(v))
}

// Null describes a value that must be JSON null.
func Null() ValueSchema { return ValueSchema{"type": "null"} }

// Boolean describes a boolean value.
func Boolean() ValueSchema { return ValueSchema{"type": "boolean"} }

// Number describes a numeric (floating point) value.
func Number() ValueSchema { return ValueSchema{"type": "number"} }

// Integer describes an integral value.
func Integer() ValueSchema { return ValueSchema{"type": "integer"} }

// Any describes an unconstrained value (used for function return schemas
// whose shape is not known ahead of time).
func Any() ValueSchema { return ValueSchema{} }

// StringSchema describes a string value with optional const/enum/length/
// pattern constraints layered on via the With* methods.
type StringSchema struct{ ValueSchema }

// String starts a string value schema.
func String() StringSchema {
	return StringSchema{ValueSchema{"type": "string"}}
}

func (s StringSchema) WithConst(v string) StringSchema {
	s.ValueSchema["const"] = v
	return s
}

func (s StringSchema) WithEnum(values ...string) StringSchema {
	s.ValueSchema["enum"] = values
	return s
}

func (s StringSchema) WithMinLength(n int) StringSchema {
	s.ValueSchema["minLength"] = n
	return s
}

func (s StringSchema) WithMaxLength(n int) StringSchema {
	s.ValueSchema["maxLength"] = n
	return s
}

func (s StringSchema) WithPattern(pattern string) StringSchema {
	s.ValueSchema["pattern"] = pattern
	return s
}

// ArraySchema describes an array value.
type ArraySchema struct{ ValueSchema }

// Array starts an array value schema.
func Array() ArraySchema {
	return ArraySchema{ValueSchema{"type": "array"}}
}

func (a ArraySchema) WithItems(item ValueSchema) ArraySchema {
	a.ValueSchema["items"] = item
	return a
}

func (a ArraySchema) WithContains(item ValueSchema) ArraySchema {
	a.ValueSchema["contains"] = item
	return a
}

func (a ArraySchema) WithMinItems(n int) ArraySchema {
	a.ValueSchema["minItems"] = n
	return a
}

func (a ArraySchema) WithMaxItems(n int) ArraySchema {
	a.ValueSchema["maxItems"] = n
	return a
}

func (a ArraySchema) WithUniqueItems() ArraySchema {
	a.ValueSchema["uniqueItems"] = true
	return a
}

func (a ArraySchema) WithAdditionalItems(allowed bool) ArraySchema {
	a.ValueSchema["additionalItems"] = allowed
	return a
}

// ObjectSchema describes an object value.
type ObjectSchema struct{ ValueSchema }

// Object starts an object value schema.
func Object() ObjectSchema {
	return ObjectSchema{ValueSchema{"type": "object"}}
}

func (o ObjectSchema) WithProperty(name string, s ValueSchema) ObjectSchema {
	props, _ := o.ValueSchema["properties"].(map[string]interface{})
	if props == nil {
		props = map[string]interface{}{}
	}
	props[name] = s
	o.ValueSchema["properties"] = props
	return o
}

func (o ObjectSchema) WithRequired(names ...string) ObjectSchema {
	o.ValueSchema["required"] = names
	return o
}

func (o ObjectSchema) WithAdditionalProperties(allowed bool) ObjectSchema {
	o.ValueSchema["additionalProperties"] = allowed
	return o
}

// FunctionSignatureSchema builds the object schema a function talent
// advertises for a registered function's call-input feature: the shape of
// the value payload a caller must send to invoke it.
func FunctionSignatureSchema(name string) ObjectSchema {
	return Object().
		WithRequired("func", "args", "chnl", "call", "timeoutAtMs").
		WithProperty("func", String().WithConst(name).ValueSchema).
		WithProperty("args", Array().ValueSchema).
		WithProperty("chnl", String().ValueSchema).
		WithProperty("call", String().ValueSchema).
		WithProperty("timeoutAtMs", Integer()).
		WithAdditionalProperties(false)
}
