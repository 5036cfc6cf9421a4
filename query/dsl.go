// Package query translates the JSON query DSL documents accepted by the
// storage service into parameterised SQL text for the readings table or any
// generic table.
package query

import (
	"encoding/json"

	"github.com/foglamp-io/storage-sqlite/ferrors"
)

// Document is a parsed query DSL object. Every field is optional; a
// zero-value Document selects all rows with a default projection.
type Document struct {
	Return     []ReturnColumn
	Aggregate  []Aggregate
	Modifier   string
	Where      *Where
	Group      *GroupBy
	Sort       []SortSpec
	Limit      *int
	Skip       *int
	Timebucket *Timebucket
}

// ReturnColumn is one entry of the "return" projection list.
type ReturnColumn struct {
	Column   string
	Alias    string
	Format   string
	Timezone string
	JSON     *JSONField
}

// JSONField describes a {json:{column,properties}} projection or aggregate
// target, addressing a nested key inside a JSON document column.
type JSONField struct {
	Column        string
	Properties    []string
	PropertyIsArr bool // true if "properties" was a JSON array in the source document
}

// Aggregate describes one "aggregate" clause entry.
type Aggregate struct {
	Operation string
	Column    string
	JSON      *JSONField
	Alias     string
}

// GroupBy describes the "group" clause.
type GroupBy struct {
	Column string
	Format string
	Alias  string
}

// SortSpec describes one "sort" entry.
type SortSpec struct {
	Column    string
	Direction string
}

// Timebucket describes the "timebucket" clause.
type Timebucket struct {
	Timestamp string
	Size      string
	Format    string
	Alias     string
}

// ParseDocument parses a JSON query DSL document.
func ParseDocument(data []byte) (*Document, error) {
	if len(data) == 0 {
		return &Document{}, nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, ferrors.Wrap(ferrors.ParseError, "retrieve", err)
	}

	doc := &Document{}
	var err error

	if v, ok := raw["return"]; ok {
		if doc.Return, err = parseReturn(v); err != nil {
			return nil, err
		}
	}
	if v, ok := raw["aggregate"]; ok {
		if doc.Aggregate, err = parseAggregate(v); err != nil {
			return nil, err
		}
	}
	if v, ok := raw["modifier"]; ok {
		if err := json.Unmarshal(v, &doc.Modifier); err != nil {
			return nil, ferrors.Wrap(ferrors.ShapeError, "retrieve", err)
		}
	}
	if v, ok := raw["where"]; ok {
		if doc.Where, err = parseWhere(v); err != nil {
			return nil, err
		}
	}
	if v, ok := raw["group"]; ok {
		if doc.Group, err = parseGroup(v); err != nil {
			return nil, err
		}
	}
	if v, ok := raw["sort"]; ok {
		if doc.Sort, err = parseSort(v); err != nil {
			return nil, err
		}
	}
	if v, ok := raw["limit"]; ok {
		var n int
		if err := json.Unmarshal(v, &n); err != nil {
			return nil, ferrors.New(ferrors.ShapeError, "limit", "limit must be specified as an integer")
		}
		if n < 0 {
			return nil, ferrors.New(ferrors.ShapeError, "limit", "limit must be non-negative")
		}
		doc.Limit = &n
	}
	if v, ok := raw["skip"]; ok {
		var n int
		if err := json.Unmarshal(v, &n); err != nil {
			return nil, ferrors.New(ferrors.ShapeError, "skip", "skip must be specified as an integer")
		}
		if n < 0 {
			return nil, ferrors.New(ferrors.ShapeError, "skip", "skip must be non-negative")
		}
		doc.Skip = &n
	}
	if v, ok := raw["timebucket"]; ok {
		if doc.Timebucket, err = parseTimebucket(v); err != nil {
			return nil, err
		}
	}
	if doc.Timebucket != nil && doc.Sort != nil {
		return nil, ferrors.New(ferrors.ShapeError, "query modifiers",
			"sort and timebucket modifiers can not be used in the same payload")
	}
	return doc, nil
}

func parseJSONField(raw json.RawMessage) (*JSONField, error) {
	var obj struct {
		Column     string          `json:"column"`
		Properties json.RawMessage `json:"properties"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, ferrors.Wrap(ferrors.ShapeError, "retrieve", err)
	}
	if obj.Column == "" {
		return nil, ferrors.New(ferrors.ShapeError, "retrieve", "the json property is missing a column property")
	}
	if len(obj.Properties) == 0 {
		return nil, ferrors.New(ferrors.ShapeError, "retrieve", "the json property is missing a properties property")
	}
	jf := &JSONField{Column: obj.Column}
	var arr []string
	if err := json.Unmarshal(obj.Properties, &arr); err == nil {
		jf.Properties = arr
		jf.PropertyIsArr = true
		return jf, nil
	}
	var single string
	if err := json.Unmarshal(obj.Properties, &single); err != nil {
		return nil, ferrors.New(ferrors.ShapeError, "retrieve", "properties must be a string or an array of strings")
	}
	jf.Properties = []string{single}
	return jf, nil
}

func parseReturn(raw json.RawMessage) ([]ReturnColumn, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, ferrors.New(ferrors.ShapeError, "retrieve", "return must be an array")
	}
	out := make([]ReturnColumn, 0, len(items))
	for _, item := range items {
		var asString string
		if err := json.Unmarshal(item, &asString); err == nil {
			out = append(out, ReturnColumn{Column: asString})
			continue
		}
		var obj struct {
			Column   string          `json:"column"`
			Alias    string          `json:"alias"`
			Format   string          `json:"format"`
			Timezone string          `json:"timezone"`
			JSON     json.RawMessage `json:"json"`
		}
		if err := json.Unmarshal(item, &obj); err != nil {
			return nil, ferrors.Wrap(ferrors.ShapeError, "retrieve", err)
		}
		rc := ReturnColumn{Column: obj.Column, Alias: obj.Alias, Format: obj.Format, Timezone: obj.Timezone}
		if len(obj.JSON) > 0 {
			jf, err := parseJSONField(obj.JSON)
			if err != nil {
				return nil, err
			}
			rc.JSON = jf
		}
		out = append(out, rc)
	}
	return out, nil
}

func parseOneAggregate(raw json.RawMessage) (Aggregate, error) {
	var obj struct {
		Operation string          `json:"operation"`
		Column    string          `json:"column"`
		JSON      json.RawMessage `json:"json"`
		Alias     string          `json:"alias"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return Aggregate{}, ferrors.Wrap(ferrors.ShapeError, "select aggregation", err)
	}
	if obj.Operation == "" {
		return Aggregate{}, ferrors.New(ferrors.ShapeError, "select aggregation", `missing property "operation"`)
	}
	if obj.Column == "" && len(obj.JSON) == 0 {
		return Aggregate{}, ferrors.New(ferrors.ShapeError, "select aggregation", `missing property "column" or "json"`)
	}
	agg := Aggregate{Operation: obj.Operation, Column: obj.Column, Alias: obj.Alias}
	if len(obj.JSON) > 0 {
		jf, err := parseJSONField(obj.JSON)
		if err != nil {
			return Aggregate{}, err
		}
		agg.JSON = jf
	}
	return agg, nil
}

func parseAggregate(raw json.RawMessage) ([]Aggregate, error) {
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err == nil {
		out := make([]Aggregate, 0, len(arr))
		for _, item := range arr {
			agg, err := parseOneAggregate(item)
			if err != nil {
				return nil, err
			}
			out = append(out, agg)
		}
		return out, nil
	}
	agg, err := parseOneAggregate(raw)
	if err != nil {
		return nil, err
	}
	return []Aggregate{agg}, nil
}

func parseGroup(raw json.RawMessage) (*GroupBy, error) {
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return &GroupBy{Column: asString}, nil
	}
	var obj struct {
		Column string `json:"column"`
		Format string `json:"format"`
		Alias  string `json:"alias"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, ferrors.Wrap(ferrors.ShapeError, "select group", err)
	}
	return &GroupBy{Column: obj.Column, Format: obj.Format, Alias: obj.Alias}, nil
}

func parseOneSort(raw json.RawMessage) (SortSpec, error) {
	var obj struct {
		Column    string `json:"column"`
		Direction string `json:"direction"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return SortSpec{}, ferrors.Wrap(ferrors.ShapeError, "select sort", err)
	}
	if obj.Column == "" {
		return SortSpec{}, ferrors.New(ferrors.ShapeError, "select sort", `missing property "column"`)
	}
	if obj.Direction == "" {
		obj.Direction = "ASC"
	}
	return SortSpec{Column: obj.Column, Direction: obj.Direction}, nil
}

func parseSort(raw json.RawMessage) ([]SortSpec, error) {
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err == nil {
		out := make([]SortSpec, 0, len(arr))
		for _, item := range arr {
			s, err := parseOneSort(item)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
		return out, nil
	}
	s, err := parseOneSort(raw)
	if err != nil {
		return nil, err
	}
	return []SortSpec{s}, nil
}

func parseTimebucket(raw json.RawMessage) (*Timebucket, error) {
	var obj struct {
		Timestamp string `json:"timestamp"`
		Size      string `json:"size"`
		Format    string `json:"format"`
		Alias     string `json:"alias"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, ferrors.Wrap(ferrors.ShapeError, "select data", err)
	}
	if obj.Timestamp == "" {
		return nil, ferrors.New(ferrors.ShapeError, "select data",
			`the "timebucket" object must have a timestamp property`)
	}
	return &Timebucket{Timestamp: obj.Timestamp, Size: obj.Size, Format: obj.Format, Alias: obj.Alias}, nil
}

func quoteIdent(name string) string {
	return "\"" + name + "\""
}
