package guard

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fluxo-erp/gateway/internal/domain"
	"github.com/fluxo-erp/gateway/internal/notify"
)

func userWithRole(role domain.Role) *domain.AuthenticatedUser {
	return domain.NewAuthenticatedUser(domain.Identity{ID: "id-1", Email: "u@x.com"}, string(role), "U")
}

func TestEvaluate_NeverRendersWhileLoading(t *testing.T) {
	users := []*domain.AuthenticatedUser{
		nil,
		userWithRole(domain.RoleUser),
		userWithRole(domain.RoleAdmin),
	}
	routes := []Route{
		{Path: "/dashboard"},
		{Path: "/settings", Roles: []domain.Role{domain.RoleAdmin}},
		{Path: "/financial/entries", Roles: financeRoles},
	}

	for _, user := range users {
		for _, route := range routes {
			decision := Evaluate(State{Loading: true, User: user}, route)
			assert.Equal(t, Loading, decision.Action, "route=%s", route.Path)
			assert.Empty(t, decision.Location)
		}
	}
}

func TestEvaluate_DecisionTable(t *testing.T) {
	settings := Route{Path: "/settings", Roles: []domain.Role{domain.RoleAdmin}}

	cases := []struct {
		name     string
		state    State
		route    Route
		action   Action
		location string
	}{
		{"public route while loading", State{Loading: true}, Route{Path: "/login", Public: true}, Render, ""},
		{"anonymous", State{}, Route{Path: "/orders/new"}, RedirectLogin, "/login?from=%2Forders%2Fnew"},
		{"wrong role", State{User: userWithRole(domain.RoleUser)}, settings, Unauthorized, UnauthorizedPath},
		{"right role", State{User: userWithRole(domain.RoleAdmin)}, settings, Render, ""},
		{"any authenticated user", State{User: userWithRole(domain.RoleStock)}, Route{Path: "/inventory"}, Render, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			decision := Evaluate(tc.state, tc.route)
			assert.Equal(t, tc.action, decision.Action)
			assert.Equal(t, tc.location, decision.Location)
		})
	}
}

type fakeTarget struct {
	state        State
	session      bool
	refreshErr   error
	refreshed    int
	afterRefresh *domain.AuthenticatedUser
	notes        []notify.Notification
}

func (f *fakeTarget) GuardState() State { return f.state }

func (f *fakeTarget) HasSession() bool { return f.session }

func (f *fakeTarget) RefreshSession(context.Context) error {
	f.refreshed++
	if f.refreshErr != nil {
		return f.refreshErr
	}
	f.state.User = f.afterRefresh
	return nil
}

func (f *fakeTarget) Notify(n notify.Notification) {
	f.notes = append(f.notes, n)
}

func TestCheck_UnauthorizedRoleNotifiesOnce(t *testing.T) {
	g := New(zap.NewNop(), nil)
	target := &fakeTarget{state: State{User: userWithRole(domain.RoleUser)}, session: true}

	decision := g.Check(context.Background(), target, Route{Path: "/settings", Roles: []domain.Role{domain.RoleAdmin}})

	assert.Equal(t, Unauthorized, decision.Action)
	assert.Equal(t, UnauthorizedPath, decision.Location)
	require.Len(t, target.notes, 1)
	assert.Equal(t, unauthorizedTitle, target.notes[0].Title)
	assert.Zero(t, target.refreshed)
}

func TestCheck_RefreshesOnceBeforeRedirecting(t *testing.T) {
	g := New(zap.NewNop(), nil)
	target := &fakeTarget{session: true, refreshErr: errors.New("expired")}

	decision := g.Check(context.Background(), target, Route{Path: "/invoices"})

	assert.Equal(t, RedirectLogin, decision.Action)
	assert.Equal(t, "/invoices", decision.From)
	assert.Equal(t, 1, target.refreshed)
	assert.Empty(t, target.notes)
}

func TestCheck_RefreshRecoversUser(t *testing.T) {
	g := New(zap.NewNop(), nil)
	target := &fakeTarget{session: true, afterRefresh: userWithRole(domain.RoleFinance)}

	decision := g.Check(context.Background(), target, Route{Path: "/financial/cash-flow", Roles: financeRoles})

	assert.Equal(t, Render, decision.Action)
	assert.Equal(t, 1, target.refreshed)
}

func TestCheck_NoSessionSkipsRefresh(t *testing.T) {
	g := New(zap.NewNop(), nil)
	target := &fakeTarget{}

	decision := g.Check(context.Background(), target, Route{Path: "/dashboard"})

	assert.Equal(t, RedirectLogin, decision.Action)
	assert.Zero(t, target.refreshed)
}

func TestCheck_LoadingHasNoSideEffects(t *testing.T) {
	g := New(zap.NewNop(), nil)
	target := &fakeTarget{state: State{Loading: true}, session: true}

	decision := g.Check(context.Background(), target, Route{Path: "/settings", Roles: []domain.Role{domain.RoleAdmin}})

	assert.Equal(t, Loading, decision.Action)
	assert.Zero(t, target.refreshed)
	assert.Empty(t, target.notes)
}

func TestTable_Lookup(t *testing.T) {
	table := DefaultTable()

	root, ok := table.Lookup("/")
	require.True(t, ok)
	assert.Equal(t, LandingPath, root.Path)

	settings, ok := table.Lookup("/settings/")
	require.True(t, ok)
	assert.Equal(t, []domain.Role{domain.RoleAdmin}, settings.Roles)

	login, ok := table.Lookup("login")
	require.True(t, ok)
	assert.True(t, login.Public)

	_, ok = table.Lookup("/does-not-exist")
	assert.False(t, ok)

	assert.Contains(t, table.Paths(), "/financial/cash-flow")
}
