// Package ref resolves $ref relationship link URIs to entity keys.
package ref

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
)

// ErrInvalidReference reports a link that does not identify an entity under
// the current routing configuration.
var ErrInvalidReference = errors.New("reference URI does not contain an entity key")

// Resolver extracts entity keys from canonical entity URIs. Only collections
// registered with the router are accepted.
type Resolver struct {
	collections map[string]struct{}
}

// NewResolver builds a resolver over the set of routed collection names.
func NewResolver(collections ...string) *Resolver {
	r := &Resolver{collections: make(map[string]struct{}, len(collections))}
	for _, name := range collections {
		r.collections[name] = struct{}{}
	}
	return r
}

// KeyFromURI parses an absolute or service-relative entity URI, accepting
// both the customers(5) and customers/5 spellings, and returns the target
// collection and key.
func (r *Resolver) KeyFromURI(raw string) (string, uint, error) {
	if raw == "" {
		return "", 0, ErrInvalidReference
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", 0, ErrInvalidReference
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) == 0 {
		return "", 0, ErrInvalidReference
	}
	last := segments[len(segments)-1]

	// customers(5)
	if open := strings.IndexByte(last, '('); open > 0 && strings.HasSuffix(last, ")") {
		collection := last[:open]
		key, err := parseKey(last[open+1 : len(last)-1])
		if err != nil {
			return "", 0, err
		}
		return collection, key, r.check(collection)
	}

	// customers/5
	if len(segments) >= 2 {
		key, err := parseKey(last)
		if err != nil {
			return "", 0, err
		}
		collection := segments[len(segments)-2]
		return collection, key, r.check(collection)
	}

	return "", 0, ErrInvalidReference
}

func (r *Resolver) check(collection string) error {
	if _, ok := r.collections[collection]; !ok {
		return ErrInvalidReference
	}
	return nil
}

func parseKey(raw string) (uint, error) {
	key, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || key == 0 {
		return 0, ErrInvalidReference
	}
	return uint(key), nil
}
