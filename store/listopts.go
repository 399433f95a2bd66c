package store

import (
	"strconv"
	"strings"
)

// DefaultLimit is the page size used when a list request carries no range.
const DefaultLimit = 100

// ListOptions paginates and projects a list query.
type ListOptions struct {
	Skip  int
	Limit int

	// Fields restricts the returned attributes, using external names ("id", "name", ...).
	Fields []string
}

// TextQuery filters a text listing.
type TextQuery struct {
	ListOptions

	// Contains keeps texts whose value contains the substring.
	Contains string

	// ClassID keeps texts tagged with the class.
	ClassID string
}

// ParseRange derives skip and limit from a range header of the form
// "items=<first>-<last>" (inclusive). An empty header yields the defaults.
func ParseRange(header string) (ListOptions, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return ListOptions{Limit: DefaultLimit}, nil
	}
	unit, spec, ok := strings.Cut(header, "=")
	if !ok || strings.TrimSpace(unit) != "items" {
		return ListOptions{}, newError(KindInvalid, "malformed range %q", header)
	}
	first, last, ok := strings.Cut(strings.TrimSpace(spec), "-")
	if !ok {
		return ListOptions{}, newError(KindInvalid, "malformed range %q", header)
	}
	start, err := strconv.Atoi(first)
	if err != nil || start < 0 {
		return ListOptions{}, newError(KindInvalid, "malformed range start %q", first)
	}
	if last == "" {
		return ListOptions{Skip: start, Limit: DefaultLimit}, nil
	}
	end, err := strconv.Atoi(last)
	if err != nil || end < start {
		return ListOptions{}, newError(KindInvalid, "malformed range end %q", last)
	}
	return ListOptions{Skip: start, Limit: end - start + 1}, nil
}

// ContentRange formats the response header matching a page of n items out of total.
func ContentRange(opts ListOptions, n, total int) string {
	if n == 0 {
		return "items */" + strconv.Itoa(total)
	}
	return "items " + strconv.Itoa(opts.Skip) + "-" + strconv.Itoa(opts.Skip+n-1) + "/" + strconv.Itoa(total)
}

var projectable = map[Schema]map[string]string{
	SchemaClass: {
		"id":          "_id",
		"rev":         "_rev",
		"name":        "name",
		"description": "description",
	},
	SchemaText: {
		"id":       "_id",
		"rev":      "_rev",
		"value":    "value",
		"classes":  "classes",
		"metadata": "metadata",
	},
}

// normalize validates opts for schema and returns the options with stored
// field names. Validation-critical fields are always projected.
func (o ListOptions) normalize(schema Schema, pageSize int) (ListOptions, error) {
	if o.Skip < 0 {
		return o, newError(KindInvalid, "skip must not be negative")
	}
	if o.Limit < 0 {
		return o, newError(KindInvalid, "limit must be positive")
	}
	if o.Limit == 0 {
		o.Limit = pageSize
	}
	if len(o.Fields) == 0 {
		return o, nil
	}
	names := projectable[schema]
	fields := []string{"_id", "tenant", "schema"}
	for _, f := range o.Fields {
		stored, ok := names[f]
		if !ok {
			return o, newError(KindInvalid, "unknown field %q", f)
		}
		if stored != "_id" {
			fields = append(fields, stored)
		}
	}
	o.Fields = fields
	return o, nil
}

// project clears the attributes of doc not named in fields.
func project(doc *Document, fields []string) *Document {
	if len(fields) == 0 {
		return doc
	}
	keep := make(map[string]bool, len(fields))
	for _, f := range fields {
		keep[f] = true
	}
	out := &Document{ID: doc.ID, Tenant: doc.Tenant, Schema: doc.Schema}
	if keep["_rev"] {
		out.Rev = doc.Rev
	}
	if keep["name"] {
		out.Name = doc.Name
	}
	if keep["description"] {
		out.Description = doc.Description
	}
	if keep["value"] {
		out.Value = doc.Value
	}
	if keep["classes"] {
		out.Classes = doc.Classes
	}
	if keep["metadata"] {
		out.Metadata = doc.Metadata
	}
	return out
}
