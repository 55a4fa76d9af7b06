package stage

import "testing"

func TestLookupKnownStages(t *testing.T) {
	for _, name := range []Name{Test, HistoricalAll, Small, Medium, Large, RetryFailed} {
		if _, ok := Lookup(name); !ok {
			t.Fatalf("expected stage %q to be registered", name)
		}
	}
}

func TestLookupUnknownStage(t *testing.T) {
	if _, ok := Lookup(Name("bogus")); ok {
		t.Fatal("expected unknown stage to be rejected")
	}
}

func TestOnlyRetryFailedNeedsMaxAttempts(t *testing.T) {
	for _, c := range All {
		want := c.Name == RetryFailed
		if got := c.NeedsMaxAttemptsParam(); got != want {
			t.Fatalf("stage %q: NeedsMaxAttemptsParam() = %v, want %v", c.Name, got, want)
		}
	}
}
