package authz

import (
	"strings"

	"fleettrack/internal/audit"
	"fleettrack/internal/permission"
)

// Rule binds an HTTP route to the feature and action required to use it.
// UnitParam optionally names the chi URL parameter (or query parameter)
// carrying the target unit id for the scope check.
type Rule struct {
	Feature    string
	Action     permission.Action
	EntityType audit.EntityType
	UnitParam  string
}

type routeKey struct {
	method  string
	pattern string
}

// RouteTable maps (method, path pattern) to authorization rules. Patterns
// use chi-style placeholders: a segment written as {name} matches any single
// segment. Routes absent from the table pass through the guard untouched.
type RouteTable struct {
	rules map[routeKey]Rule
}

func NewRouteTable() *RouteTable {
	return &RouteTable{rules: make(map[routeKey]Rule)}
}

// Add registers a rule. Later registrations of the same (method, pattern)
// overwrite earlier ones.
func (t *RouteTable) Add(method, pattern string, rule Rule) *RouteTable {
	t.rules[routeKey{method: method, pattern: pattern}] = rule
	return t
}

// Lookup matches a concrete request line against the table.
func (t *RouteTable) Lookup(method, path string) (Rule, bool) {
	for key, rule := range t.rules {
		if key.method == method && matchPattern(key.pattern, path) {
			return rule, true
		}
	}
	return Rule{}, false
}

func matchPattern(pattern, path string) bool {
	patSegs := splitPath(pattern)
	pathSegs := splitPath(path)
	if len(patSegs) != len(pathSegs) {
		return false
	}
	for i, seg := range patSegs {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			continue
		}
		if seg != pathSegs[i] {
			return false
		}
	}
	return true
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}
