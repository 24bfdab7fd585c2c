package limits

import "testing"

func TestTakeGiveRoundTrip(t *testing.T) {
	var s Sysatomic_t = 2
	if !s.Take() {
		t.Fatalf("expected first Take to succeed")
	}
	if !s.Take() {
		t.Fatalf("expected second Take to succeed")
	}
	if s.Take() {
		t.Fatalf("expected third Take to fail once the quota is exhausted")
	}
	s.Give()
	if !s.Take() {
		t.Fatalf("expected Take to succeed again after a Give")
	}
}

func TestTakenLeavesLimitUnchangedOnFailure(t *testing.T) {
	var s Sysatomic_t = 0
	if s.Taken(3) {
		t.Fatalf("expected Taken(3) to fail against a zero limit")
	}
	if int64(s) != 0 {
		t.Fatalf("expected limit to be left unchanged on failure, got %d", int64(s))
	}
}

func TestMkSysLimitDefault(t *testing.T) {
	l := MkSysLimit()
	if int64(l.Sysprocs) != 1e4 {
		t.Fatalf("expected default Sysprocs quota of 1e4, got %d", int64(l.Sysprocs))
	}
}
