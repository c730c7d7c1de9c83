package odata

import (
	"net/url"
	"strconv"
	"strings"

	"gorm.io/gorm"
)

// Limits bounds what a single query request may ask for.
type Limits struct {
	MaxExpansionDepth int
	DefaultTop        int
}

// OrderKey is one $orderby sort key.
type OrderKey struct {
	Column string
	Desc   bool
}

// Options is a validated, executable query request.
type Options struct {
	Filter  *Filter
	OrderBy []OrderKey
	Top     *int
	Skip    *int
	Select  []string
	Expands []string
	Count   bool
}

// ParseOptions validates the request's query parameters against the entity
// schema. Any malformed parameter fails the whole request; nothing is
// silently dropped.
func ParseOptions(values url.Values, schema *EntitySchema, limits Limits) (*Options, error) {
	opts := &Options{}

	for key := range values {
		if !strings.HasPrefix(key, "$") {
			continue // non-OData parameters belong to the route, not the query
		}
		raw := values.Get(key)
		switch key {
		case "$filter":
			f, err := ParseFilter(raw, schema)
			if err != nil {
				return nil, err
			}
			opts.Filter = f
		case "$orderby":
			keys, err := parseOrderBy(raw, schema)
			if err != nil {
				return nil, err
			}
			opts.OrderBy = keys
		case "$top":
			n, err := parseNonNegative(key, raw)
			if err != nil {
				return nil, err
			}
			opts.Top = &n
		case "$skip":
			n, err := parseNonNegative(key, raw)
			if err != nil {
				return nil, err
			}
			opts.Skip = &n
		case "$select":
			cols, err := parseSelect(raw, schema)
			if err != nil {
				return nil, err
			}
			opts.Select = cols
		case "$expand":
			paths, err := parseExpand(raw, schema, limits.MaxExpansionDepth)
			if err != nil {
				return nil, err
			}
			opts.Expands = paths
		case "$count":
			switch raw {
			case "true":
				opts.Count = true
			case "false":
			default:
				return nil, queryErrorf("$count: expected true or false, got %q", raw)
			}
		default:
			return nil, queryErrorf("unsupported query option %q", key)
		}
	}

	// No implicit page cap unless one is configured.
	if opts.Top == nil && limits.DefaultTop > 0 {
		top := limits.DefaultTop
		opts.Top = &top
	}

	return opts, nil
}

func parseNonNegative(key, raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, queryErrorf("%s: expected a non-negative integer, got %q", key, raw)
	}
	return n, nil
}

func parseOrderBy(raw string, schema *EntitySchema) ([]OrderKey, error) {
	var keys []OrderKey
	for _, item := range strings.Split(raw, ",") {
		parts := strings.Fields(item)
		if len(parts) == 0 || len(parts) > 2 {
			return nil, queryErrorf("$orderby: malformed sort key %q", item)
		}
		col, ok := schema.Column(parts[0])
		if !ok {
			return nil, queryErrorf("$orderby: unknown field %q", parts[0])
		}
		key := OrderKey{Column: col}
		if len(parts) == 2 {
			switch parts[1] {
			case "asc":
			case "desc":
				key.Desc = true
			default:
				return nil, queryErrorf("$orderby: expected asc or desc, got %q", parts[1])
			}
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func parseSelect(raw string, schema *EntitySchema) ([]string, error) {
	var cols []string
	hasID := false
	for _, item := range strings.Split(raw, ",") {
		field := strings.TrimSpace(item)
		col, ok := schema.Column(field)
		if !ok {
			return nil, queryErrorf("$select: unknown field %q", field)
		}
		if col == "id" {
			hasID = true
		}
		cols = append(cols, col)
	}
	if len(cols) == 0 {
		return nil, queryErrorf("$select: empty projection")
	}
	// The key column always rides along so items stay addressable.
	if !hasID {
		cols = append(cols, "id")
	}
	return cols, nil
}

// parseExpand validates each relation path against the schema graph and
// converts it to a preload path. Paths nest with "/", lists with ",".
func parseExpand(raw string, schema *EntitySchema, maxDepth int) ([]string, error) {
	var paths []string
	for _, item := range strings.Split(raw, ",") {
		segments := strings.Split(strings.TrimSpace(item), "/")
		if maxDepth > 0 && len(segments) > maxDepth {
			return nil, queryErrorf("$expand: %q exceeds maximum expansion depth %d", item, maxDepth)
		}
		current := schema
		var fields []string
		for _, seg := range segments {
			rel, ok := current.Relation(seg)
			if !ok {
				return nil, queryErrorf("$expand: unknown relation %q", seg)
			}
			fields = append(fields, rel.FieldName)
			next, ok := Lookup(rel.Target)
			if !ok {
				return nil, queryErrorf("$expand: relation %q is not expandable", seg)
			}
			current = next
		}
		paths = append(paths, strings.Join(fields, "."))
	}
	return paths, nil
}

// Apply attaches everything except the count to the query.
func (o *Options) Apply(db *gorm.DB) *gorm.DB {
	db = o.ApplyFilter(db)
	for _, key := range o.OrderBy {
		if key.Desc {
			db = db.Order(key.Column + " DESC")
		} else {
			db = db.Order(key.Column)
		}
	}
	if o.Top != nil {
		db = db.Limit(*o.Top)
	}
	if o.Skip != nil {
		db = db.Offset(*o.Skip)
	}
	if len(o.Select) > 0 {
		db = db.Select(o.Select)
	}
	for _, path := range o.Expands {
		db = db.Preload(path)
	}
	return db
}

// ApplyFilter attaches only the filter predicate, for counting the full
// match set independent of paging.
func (o *Options) ApplyFilter(db *gorm.DB) *gorm.DB {
	if o.Filter != nil {
		db = db.Where(o.Filter.SQL, o.Filter.Args...)
	}
	return db
}
