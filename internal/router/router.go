// Package router maps location hashes to pages and enforces the route guard.
package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/iptdesk/internal/logging"
	"github.com/dmitrijs2005/iptdesk/internal/views"
)

type Route string

const (
	Home        Route = "/"
	Register    Route = "/register"
	Login       Route = "/login"
	VerifyEmail Route = "/verify-email"
	Profile     Route = "/profile"
	Accounts    Route = "/accounts"
	Requests    Route = "/requests"
	Employees   Route = "/employees"
	Departments Route = "/departments"
)

var known = map[Route]bool{
	Home: true, Register: true, Login: true, VerifyEmail: true, Profile: true,
	Accounts: true, Requests: true, Employees: true, Departments: true,
}

// Routes that need a session, and routes that need an admin session.
// /departments is admin-only without being protected, so guests are sent
// home rather than to the login page.
var (
	protected = map[Route]bool{Profile: true, Requests: true, Employees: true, Accounts: true}
	adminOnly = map[Route]bool{Employees: true, Accounts: true, Departments: true}
)

// Guard answers the session questions the router asks.
type Guard interface {
	IsAuthenticated() bool
	IsAdmin() bool
}

// Hook renders the content of an activated page. Hooks must not change state.
type Hook func(ctx context.Context) (views.View, error)

// Page is the outcome of a navigation. Redirected lists the routes that
// were requested and left, in order.
type Page struct {
	Route      Route
	Redirected []Route
	View       views.View
}

type Router struct {
	guard  Guard
	hooks  map[Route]Hook
	active Route
	log    logging.Logger
}

func New(guard Guard, log logging.Logger) *Router {
	return &Router{guard: guard, hooks: make(map[Route]Hook), log: log}
}

// Handle binds hook to route, replacing any earlier hook.
func (r *Router) Handle(route Route, hook Hook) {
	r.hooks[route] = hook
}

// Active is the route of the last activated page, or "" before the first
// navigation.
func (r *Router) Active() Route {
	return r.active
}

// Parse normalises a location hash. "#/x" and "/x" name the same route and
// an empty hash is home. Unknown routes are returned as is.
func Parse(hash string) Route {
	h := strings.TrimSpace(hash)
	h = strings.TrimPrefix(h, "#")
	if h == "" {
		return Home
	}
	if !strings.HasPrefix(h, "/") {
		h = "/" + h
	}
	return Route(h)
}

// Navigate runs the guard for hash, follows redirects and activates the
// resulting page. Unknown routes activate home.
func (r *Router) Navigate(ctx context.Context, hash string) (Page, error) {
	r.active = ""
	route := Parse(hash)
	var redirected []Route

	for {
		next := r.check(route)
		if next == route {
			break
		}
		r.log.Debug(ctx, "redirect", "from", route, "to", next)
		redirected = append(redirected, route)
		route = next
	}

	if !known[route] {
		route = Home
	}
	r.active = route
	page := Page{Route: route, Redirected: redirected}

	hook, ok := r.hooks[route]
	if !ok {
		return page, nil
	}
	v, err := hook(ctx)
	if err != nil {
		return page, fmt.Errorf("render %s: %w", route, err)
	}
	page.View = v
	return page, nil
}

// check returns where route may actually go. Login and Home are never
// guarded so redirects always terminate.
func (r *Router) check(route Route) Route {
	if protected[route] && !r.guard.IsAuthenticated() {
		return Login
	}
	if adminOnly[route] && !r.guard.IsAdmin() {
		return Home
	}
	return route
}
