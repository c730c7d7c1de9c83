package handler

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"
)

// immutableFields may never appear in a partial update. Keys are assigned by
// the service and audit stamps by the write path.
var immutableFields = map[string]struct{}{
	"id":                    {},
	"inserted_datetime":     {},
	"last_updated_datetime": {},
}

// applyDelta merges a JSON delta into the target entity. Unknown fields,
// immutable fields, and relation fields are all rejected rather than
// ignored, so a typo in a field name fails loudly.
func applyDelta(target interface{}, body []byte) error {
	var delta map[string]json.RawMessage
	if err := json.Unmarshal(body, &delta); err != nil {
		return fmt.Errorf("invalid delta body: %w", err)
	}

	v := reflect.ValueOf(target).Elem()
	fields := map[string]reflect.Value{}
	indexFields(v, fields)

	for name, raw := range delta {
		if _, immutable := immutableFields[name]; immutable {
			return fmt.Errorf("field %q cannot be updated", name)
		}
		field, ok := fields[name]
		if !ok {
			return fmt.Errorf("unknown field %q", name)
		}
		if err := json.Unmarshal(raw, field.Addr().Interface()); err != nil {
			return fmt.Errorf("field %q: invalid value", name)
		}
	}
	return nil
}

// indexFields maps writable scalar fields by JSON name. Embedded structs are
// flattened; relation fields (slices and nested structs) are skipped so a
// delta cannot rewrite associations.
func indexFields(v reflect.Value, out map[string]reflect.Value) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" {
			continue
		}
		if f.Anonymous && f.Type.Kind() == reflect.Struct {
			indexFields(v.Field(i), out)
			continue
		}

		tag := f.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name := strings.Split(tag, ",")[0]
		if name == "" {
			name = f.Name
		}

		ft := f.Type
		for ft.Kind() == reflect.Ptr {
			ft = ft.Elem()
		}
		if ft.Kind() == reflect.Slice {
			continue
		}
		if ft.Kind() == reflect.Struct && ft != reflect.TypeOf(time.Time{}) {
			continue
		}

		out[name] = v.Field(i)
	}
}
