// Package odata translates OData-style query strings ($filter, $orderby,
// $top, $skip, $select, $expand, $count) into bounded gorm queries.
package odata

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// Relation describes a navigable association on an entity.
type Relation struct {
	// FieldName is the Go struct field used for preloading.
	FieldName string
	// Target is the registered schema name of the related entity.
	Target string
}

// EntitySchema is the queryable surface of one entity: which JSON fields map
// to which columns, and which relations can be expanded.
type EntitySchema struct {
	Name      string
	fields    map[string]string
	relations map[string]Relation
}

var (
	registryMu sync.RWMutex
	registry   = map[string]*EntitySchema{}
)

// Register builds a schema from the prototype's struct tags and adds it to
// the package registry so expand paths can be validated across entities.
func Register(prototype interface{}) *EntitySchema {
	t := reflect.TypeOf(prototype)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		panic(fmt.Sprintf("odata: cannot build schema from %s", t.Kind()))
	}

	s := &EntitySchema{
		Name:      t.Name(),
		fields:    map[string]string{},
		relations: map[string]Relation{},
	}
	collectFields(t, s)

	registryMu.Lock()
	registry[s.Name] = s
	registryMu.Unlock()
	return s
}

// Lookup returns a previously registered schema.
func Lookup(name string) (*EntitySchema, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	s, ok := registry[name]
	return s, ok
}

func collectFields(t reflect.Type, s *EntitySchema) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" {
			continue // unexported
		}
		if f.Anonymous && f.Type.Kind() == reflect.Struct {
			collectFields(f.Type, s)
			continue
		}

		name := jsonName(f)
		if name == "" {
			continue
		}

		ft := f.Type
		for ft.Kind() == reflect.Ptr {
			ft = ft.Elem()
		}
		switch {
		case ft.Kind() == reflect.Slice:
			elem := ft.Elem()
			for elem.Kind() == reflect.Ptr {
				elem = elem.Elem()
			}
			if elem.Kind() == reflect.Struct {
				s.relations[name] = Relation{FieldName: f.Name, Target: elem.Name()}
				continue
			}
		case ft.Kind() == reflect.Struct && ft.String() != "time.Time":
			s.relations[name] = Relation{FieldName: f.Name, Target: ft.Name()}
			continue
		}

		s.fields[name] = columnName(f, name)
	}
}

// jsonName returns the wire name of a field, or "" for hidden fields.
func jsonName(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	if tag == "-" {
		return ""
	}
	name := strings.Split(tag, ",")[0]
	if name == "" {
		name = f.Name
	}
	return name
}

// columnName prefers an explicit gorm column tag and otherwise assumes the
// JSON name and column name coincide, which the models guarantee.
func columnName(f reflect.StructField, jsonName string) string {
	for _, part := range strings.Split(f.Tag.Get("gorm"), ";") {
		if strings.HasPrefix(part, "column:") {
			return strings.TrimPrefix(part, "column:")
		}
	}
	return jsonName
}

// Column resolves a JSON field name to its database column.
func (s *EntitySchema) Column(field string) (string, bool) {
	col, ok := s.fields[field]
	return col, ok
}

// Relation resolves an expandable relation by its JSON name.
func (s *EntitySchema) Relation(name string) (Relation, bool) {
	r, ok := s.relations[name]
	return r, ok
}

// Relations returns the JSON names of all expandable relations.
func (s *EntitySchema) Relations() []string {
	names := make([]string, 0, len(s.relations))
	for name := range s.relations {
		names = append(names, name)
	}
	return names
}

// QueryError marks a malformed query request; handlers translate it to a
// 400 instead of executing a partial query.
type QueryError struct {
	Message string
}

func (e *QueryError) Error() string {
	return e.Message
}

func queryErrorf(format string, args ...interface{}) error {
	return &QueryError{Message: fmt.Sprintf(format, args...)}
}
