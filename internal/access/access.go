// Package access is the role-gating contract used to decide which map
// views a caller may open. Authentication is somebody else's job: the role
// arrives already established in the X-User-Role header.
package access

import (
	"context"
	"net/http"
	"strings"
)

const RoleHeader = "X-User-Role"

type Role string

const (
	RoleAdmin     Role = "admin"
	RoleDoctor    Role = "doctor"
	RoleLogistics Role = "logistics"
	RolePatient   Role = "patient"
)

func ParseRole(raw string) (Role, bool) {
	switch r := Role(strings.ToLower(strings.TrimSpace(raw))); r {
	case RoleAdmin, RoleDoctor, RoleLogistics, RolePatient:
		return r, true
	default:
		return "", false
	}
}

type Permission string

const (
	PermViewMap        Permission = "map.view"
	PermViewLineage    Permission = "lineage.view"
	PermViewDashboard  Permission = "dashboard.view"
	PermViewOperations Permission = "operations.view"
	PermViewOptimizer  Permission = "optimizer.view"
	PermViewJourney    Permission = "journey.view"
	PermRequestInsight Permission = "insight.request"
)

type Checker interface {
	Allowed(role Role, perm Permission) bool
}

// Table is a static role to permission grant list. Admin is always allowed.
type Table map[Role][]Permission

func (t Table) Allowed(role Role, perm Permission) bool {
	if role == RoleAdmin {
		return true
	}
	for _, p := range t[role] {
		if p == perm {
			return true
		}
	}
	return false
}

func DefaultTable() Table {
	return Table{
		RoleDoctor: {
			PermViewMap, PermViewLineage, PermViewDashboard, PermViewJourney, PermRequestInsight,
		},
		RoleLogistics: {
			PermViewMap, PermViewDashboard, PermViewOperations, PermViewOptimizer, PermRequestInsight,
		},
		RolePatient: {
			PermViewJourney,
		},
	}
}

// PermissionForVariant maps a map variant name to the permission needed to
// open it. Unknown variants need the plain map permission.
func PermissionForVariant(variant string) Permission {
	switch strings.ToLower(strings.TrimSpace(variant)) {
	case "lineage":
		return PermViewLineage
	case "dashboard":
		return PermViewDashboard
	case "operations":
		return PermViewOperations
	case "optimizer":
		return PermViewOptimizer
	case "journey":
		return PermViewJourney
	default:
		return PermViewMap
	}
}

type ctxKey struct{}

func WithRole(ctx context.Context, role Role) context.Context {
	return context.WithValue(ctx, ctxKey{}, role)
}

// RoleFromContext returns the caller's role, or "" when none was attached.
func RoleFromContext(ctx context.Context) Role {
	r, _ := ctx.Value(ctxKey{}).(Role)
	return r
}

// Middleware attaches the role named in the X-User-Role header to the request
// context. A missing or unknown header falls back to defaultRole.
func Middleware(defaultRole Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := ParseRole(r.Header.Get(RoleHeader))
			if !ok {
				role = defaultRole
			}
			next.ServeHTTP(w, r.WithContext(WithRole(r.Context(), role)))
		})
	}
}
