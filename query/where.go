package query

import (
	"bytes"
	"encoding/json"

	"github.com/foglamp-io/storage-sqlite/ferrors"
)

// ValueKind tags the dynamic type carried by a Value.
type ValueKind int

const (
	ValueInt ValueKind = iota
	ValueFloat
	ValueString
	ValueArray
)

// Value is a scalar or array literal from a where clause.
type Value struct {
	Kind  ValueKind
	Int   int64
	Float float64
	Str   string
	Array []Value
}

// Where is one node of the recursive where-clause tree: a leaf predicate
// optionally chained to a nested "and" or "or" clause. The parser sets both
// And and Or when a node carries both keys; the compiler then emits "and"
// before "or", the same way the original engine's recursive
// jsonWhereClause does.
type Where struct {
	Column    string
	Condition string
	Value     Value
	And       *Where
	Or        *Where
}

func parseValue(raw json.RawMessage) (Value, error) {
	var asArray []json.RawMessage
	if err := json.Unmarshal(raw, &asArray); err == nil {
		vals := make([]Value, 0, len(asArray))
		for _, item := range asArray {
			v, err := parseValue(item)
			if err != nil {
				return Value{}, err
			}
			vals = append(vals, v)
		}
		return Value{Kind: ValueArray, Array: vals}, nil
	}

	var num json.Number
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&num); err == nil {
		if i, err := num.Int64(); err == nil {
			return Value{Kind: ValueInt, Int: i}, nil
		}
		f, err := num.Float64()
		if err != nil {
			return Value{}, ferrors.Wrap(ferrors.ShapeError, "where clause", err)
		}
		return Value{Kind: ValueFloat, Float: f}, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return Value{Kind: ValueString, Str: s}, nil
	}

	return Value{}, ferrors.New(ferrors.ShapeError, "where clause",
		`the "value" of a condition must be a string, integer, double or array`)
}

func parseWhere(raw json.RawMessage) (*Where, error) {
	var obj struct {
		Column    string          `json:"column"`
		Condition string          `json:"condition"`
		Value     json.RawMessage `json:"value"`
		And       json.RawMessage `json:"and"`
		Or        json.RawMessage `json:"or"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, ferrors.New(ferrors.ShapeError, "where clause", `the "where" property must be a JSON object`)
	}
	if obj.Column == "" {
		return nil, ferrors.New(ferrors.ShapeError, "where clause", `the "where" object is missing a "column" property`)
	}
	if obj.Condition == "" {
		return nil, ferrors.New(ferrors.ShapeError, "where clause", `the "where" object is missing a "condition" property`)
	}
	if len(obj.Value) == 0 {
		return nil, ferrors.New(ferrors.ShapeError, "where clause", `the "where" object is missing a "value" property`)
	}

	val, err := parseValue(obj.Value)
	if err != nil {
		return nil, err
	}

	w := &Where{Column: obj.Column, Condition: obj.Condition, Value: val}

	switch obj.Condition {
	case "older", "newer":
		if val.Kind != ValueInt {
			return nil, ferrors.New(ferrors.ShapeError, "where clause",
				`the "value" of an "`+obj.Condition+`" condition must be an integer`)
		}
	case "in", "not in":
		if val.Kind != ValueArray || len(val.Array) == 0 {
			return nil, ferrors.New(ferrors.ShapeError, "where clause",
				`the "value" of a "`+obj.Condition+`" condition must be an array and must not be empty`)
		}
	}

	if len(obj.And) > 0 {
		w.And, err = parseWhere(obj.And)
		if err != nil {
			return nil, err
		}
	}
	if len(obj.Or) > 0 {
		w.Or, err = parseWhere(obj.Or)
		if err != nil {
			return nil, err
		}
	}
	return w, nil
}
