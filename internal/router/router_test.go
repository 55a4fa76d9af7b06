package router

import (
	"testing"

	"github.com/local/titleplant/internal/model"
)

func TestRouteBoundaries(t *testing.T) {
	cases := []struct {
		book int
		want model.Portal
	}{
		{1, model.PortalHistorical},
		{237, model.PortalHistorical},
		{238, model.PortalMid},
		{3971, model.PortalMid},
		{3972, model.PortalNew},
		{100000, model.PortalNew},
	}
	for _, c := range cases {
		if got := Route(c.book); got != c.want {
			t.Errorf("Route(%d) = %q, want %q", c.book, got, c.want)
		}
	}
}

func TestRouteTotality(t *testing.T) {
	for book := 1; book <= 10000; book++ {
		p := Route(book)
		if p != model.PortalHistorical && p != model.PortalMid && p != model.PortalNew {
			t.Fatalf("Route(%d) returned unknown portal %q", book, p)
		}
	}
}

func TestRoutePanicsOnNonPositive(t *testing.T) {
	for _, book := range []int{0, -1, -100} {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("Route(%d) did not panic", book)
				}
			}()
			Route(book)
		}()
	}
}

func TestRouteOK(t *testing.T) {
	if _, ok := RouteOK(0); ok {
		t.Error("RouteOK(0) should report false")
	}
	if p, ok := RouteOK(1); !ok || p != model.PortalHistorical {
		t.Errorf("RouteOK(1) = %v, %v; want Historical, true", p, ok)
	}
}
