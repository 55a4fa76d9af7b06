package queue

import "testing"

func intp(n int) *int { return &n }
func strp(s string) *string { return &s }

func TestPriorityForWillOrTestament(t *testing.T) {
	parsed := "LAST WILL AND TESTAMENT"
	if got := priorityFor(intp(5000), &parsed, nil); got != 1 {
		t.Fatalf("want priority 1 for will/testament regardless of book, got %d", got)
	}
}

func TestPriorityForHistoricalBook(t *testing.T) {
	if got := priorityFor(intp(100), strp("DEED"), nil); got != 2 {
		t.Fatalf("want priority 2 for book < 238, got %d", got)
	}
}

func TestPriorityForMidBook(t *testing.T) {
	if got := priorityFor(intp(3000), strp("DEED"), nil); got != 3 {
		t.Fatalf("want priority 3 for 238 <= book < 3972, got %d", got)
	}
}

func TestPriorityForNewPortalBook(t *testing.T) {
	if got := priorityFor(intp(4000), strp("DEED"), nil); got != 4 {
		t.Fatalf("want priority 4 for book >= 3972, got %d", got)
	}
}

func TestPriorityForMissingBook(t *testing.T) {
	if got := priorityFor(nil, strp("DEED"), nil); got != 4 {
		t.Fatalf("want priority 4 for nil book, got %d", got)
	}
}

func TestPriorityForWillDetectedInDocumentType(t *testing.T) {
	docType := "LIVING WILL"
	if got := priorityFor(intp(9999), nil, &docType); got != 1 {
		t.Fatalf("want priority 1 when only document_type carries the will/testament signal, got %d", got)
	}
}
