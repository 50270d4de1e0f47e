package services

import "campushub.com/campus-feed/log"

// RouteGuard admits or rejects entry to authenticated surfaces. The check is
// synchronous; it never suspends.
type RouteGuard struct {
	auth *AuthService
}

func NewRouteGuard(auth *AuthService) *RouteGuard {
	return &RouteGuard{auth: auth}
}

// CanActivate reports whether the named route may be entered.
func (g *RouteGuard) CanActivate(route string) bool {
	if g.auth.IsAuthenticated() {
		log.Info.Printf("guard: access granted to %s", route)
		return true
	}
	log.Warn.Printf("guard: access denied to %s, login required", route)
	return false
}
