package related

import "testing"

func TestParseRowDedupesAndExtracts(t *testing.T) {
	raw := "12345 bk:500/12\n67890 bk:501 /  13\n12345 bk:500/12"
	items := parseRow(raw)
	if len(items) != 2 {
		t.Fatalf("expected 2 deduplicated references, got %d: %+v", len(items), items)
	}
	if items[0].InstrumentNumber != 12345 || items[0].Book != 500 || items[0].Page != 12 {
		t.Fatalf("unexpected first reference: %+v", items[0])
	}
	if items[1].InstrumentNumber != 67890 || items[1].Book != 501 || items[1].Page != 13 {
		t.Fatalf("unexpected second reference: %+v", items[1])
	}
}

func TestParseRowNoMatches(t *testing.T) {
	if items := parseRow("no references here"); items != nil {
		t.Fatalf("expected nil for no matches, got %+v", items)
	}
}

func TestParseRowPreservesFirstSeenOrder(t *testing.T) {
	raw := "2 bk:10/1\n1 bk:20/2\n2 bk:10/1"
	items := parseRow(raw)
	if len(items) != 2 {
		t.Fatalf("expected 2 references, got %d", len(items))
	}
	if items[0].InstrumentNumber != 2 || items[1].InstrumentNumber != 1 {
		t.Fatalf("expected first-seen order, got %+v", items)
	}
}
