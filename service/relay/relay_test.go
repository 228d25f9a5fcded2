package relay

import "testing"

func TestSubjectRoundTrip(t *testing.T) {
	for _, id := range []int64{1, 42, 9007199254740993} {
		if got := UserFromSubject(Subject(id)); got != id {
			t.Fatalf("round trip %d -> %q -> %d", id, Subject(id), got)
		}
	}
}

func TestUserFromSubjectRejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"cb.evt.",
		"cb.evt.abc",
		"cb.evt.-5",
		"cb.evt.0",
		"other.evt.7",
		"7",
	}
	for _, s := range cases {
		if got := UserFromSubject(s); got != 0 {
			t.Fatalf("UserFromSubject(%q) = %d, want 0", s, got)
		}
	}
}
