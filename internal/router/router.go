// Package router implements the portal-routing state machine (C2): a pure,
// total function from a book number to one of three upstream portals.
package router

import "github.com/local/titleplant/internal/model"

// Route maps a book number to a portal. The caller must have already
// excluded book <= 0 (those rows should already be marked skipped by the
// cleaning pass); Route panics on non-positive input to surface that bug
// loudly rather than silently misrouting.
func Route(book int) model.Portal {
	switch {
	case book <= 0:
		panic("router: Route called with non-positive book number")
	case book < 238:
		return model.PortalHistorical
	case book < 3972:
		return model.PortalMid
	default:
		return model.PortalNew
	}
}

// RouteOK is the non-panicking form: it reports whether book is routable
// and, if so, the portal it routes to.
func RouteOK(book int) (model.Portal, bool) {
	if book <= 0 {
		return "", false
	}
	return Route(book), true
}
