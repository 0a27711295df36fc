package records

import (
	"fmt"
	"reflect"
)

// Queries are plain structs; each filtered column carries a `filter` tag.
// Store implementations turn string fields into equality filters and slice
// fields into membership filters. Zero values are skipped.

type ListingQuery struct {
	IDs     []string `filter:"id"`
	OwnerID string   `filter:"employer_id"`
	Status  string   `filter:"status"`
}

type ApplicationQuery struct {
	IDs         []string `filter:"id"`
	CandidateID string   `filter:"candidate_id"`
	ListingIDs  []string `filter:"job_id"`
}

type ProfileQuery struct {
	ID string `filter:"id"`
}

// Filter is one column constraint extracted from a query struct.
type Filter struct {
	Column string
	Values []string
	// Many marks a membership filter, even when it holds a single value.
	Many bool
}

// Filters walks the tagged fields of a query struct (or pointer to one) in
// declaration order.
func Filters(query any) []Filter {
	v := reflect.Indirect(reflect.ValueOf(query))
	if v.Kind() != reflect.Struct {
		return nil
	}

	var out []Filter
	for _, field := range reflect.VisibleFields(v.Type()) {
		column := field.Tag.Get("filter")
		if column == "" {
			continue
		}

		value := v.FieldByIndex(field.Index)
		switch value.Kind() {
		case reflect.Slice:
			if value.IsNil() {
				continue
			}
			values := make([]string, 0, value.Len())
			for i := 0; i < value.Len(); i++ {
				values = append(values, fmt.Sprintf("%v", value.Index(i).Interface()))
			}
			out = append(out, Filter{Column: column, Values: values, Many: true})
		default:
			s := fmt.Sprintf("%v", value.Interface())
			if s == "" || s == "0" {
				continue
			}
			out = append(out, Filter{Column: column, Values: []string{s}})
		}
	}

	return out
}

// Empty reports a membership filter with no candidates; such a query matches
// nothing and need not be sent.
func (f Filter) Empty() bool {
	return f.Many && len(f.Values) == 0
}
