package records

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Row is an untyped record as returned by the remote store.
type Row = map[string]any

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999-07",
	"2006-01-02 15:04:05.999999",
	"2006-01-02",
}

func DecodeListing(row Row) (Listing, error) {
	var r ListingRow
	if err := decode(row, &r); err != nil {
		return Listing{}, fmt.Errorf("decode listing: %w", err)
	}
	return r.Listing(), nil
}

func DecodeApplication(row Row) (Application, error) {
	var r ApplicationRow
	if err := decode(row, &r); err != nil {
		return Application{}, fmt.Errorf("decode application: %w", err)
	}
	return r.Application(), nil
}

func DecodeProfile(row Row) (Profile, error) {
	var r ProfileRow
	if err := decode(row, &r); err != nil {
		return Profile{}, fmt.Errorf("decode profile: %w", err)
	}
	return r.Profile(), nil
}

// DecodeListings decodes every row, failing on the first malformed one.
func DecodeListings(rows []Row) ([]Listing, error) {
	out := make([]Listing, 0, len(rows))
	for _, row := range rows {
		l, err := DecodeListing(row)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

func DecodeApplications(rows []Row) ([]Application, error) {
	out := make([]Application, 0, len(rows))
	for _, row := range rows {
		a, err := DecodeApplication(row)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func decode(input any, result any) error {
	cfg := &mapstructure.DecoderConfig{
		DecodeHook:       stringToTimeHook,
		WeaklyTypedInput: true,
		Result:           result,
		TagName:          "mapstructure",
	}

	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return err
	}

	return decoder.Decode(input)
}

func stringToTimeHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf(time.Time{}) {
		return data, nil
	}

	s := strings.TrimSpace(reflect.ValueOf(data).String())
	if s == "" {
		return time.Time{}, nil
	}

	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	return nil, fmt.Errorf("unsupported timestamp %q", s)
}
