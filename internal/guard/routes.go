package guard

import (
	"sort"
	"strings"

	"github.com/fluxo-erp/gateway/internal/domain"
)

// LandingPath is the default authenticated view; "/" goes there.
const LandingPath = "/dashboard"

var financeRoles = []domain.Role{domain.RoleAdmin, domain.RoleManager, domain.RoleFinance}

// Table maps view paths to their access rules.
type Table struct {
	routes map[string]Route
}

// DefaultTable returns the application's views.
func DefaultTable() *Table {
	t := &Table{routes: make(map[string]Route)}

	for _, path := range []string{"/login", "/register", "/recover-password"} {
		t.Add(Route{Path: path, Public: true})
	}
	for _, path := range []string{
		"/dashboard",
		"/index",
		"/profile",
		"/inventory",
		"/inventory/movements",
		"/invoices",
		"/invoices/new",
		"/orders",
		"/orders/new",
		"/purchases",
		"/expenses",
		"/clients-suppliers",
		UnauthorizedPath,
	} {
		t.Add(Route{Path: path})
	}
	t.Add(Route{Path: "/settings", Roles: []domain.Role{domain.RoleAdmin}})
	t.Add(Route{Path: "/financial/entries", Roles: financeRoles})
	t.Add(Route{Path: "/financial/cash-flow", Roles: financeRoles})
	return t
}

// Add registers or replaces a route.
func (t *Table) Add(route Route) {
	t.routes[normalize(route.Path)] = route
}

// Lookup finds the route for path. "/" resolves to the landing view.
func (t *Table) Lookup(path string) (Route, bool) {
	path = normalize(path)
	if path == "/" {
		path = LandingPath
	}
	route, ok := t.routes[path]
	return route, ok
}

// Paths lists the registered paths in order.
func (t *Table) Paths() []string {
	paths := make([]string, 0, len(t.routes))
	for p := range t.routes {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func normalize(path string) string {
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	if path == "" {
		return "/"
	}
	return path
}
