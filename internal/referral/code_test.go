package referral

import "testing"

func TestNewCode_Deterministic(t *testing.T) {
	a := NewCode("c1", "friend@example.com", 0)
	b := NewCode("c1", "friend@example.com", 0)
	if a != b {
		t.Errorf("Expected identical codes for identical input, got %s and %s", a, b)
	}

	c := NewCode("c1", "friend@example.com", 1)
	if a == c {
		t.Error("Expected a different code for a different attempt")
	}

	d := NewCode("c2", "friend@example.com", 0)
	if a == d {
		t.Error("Expected a different code for a different customer")
	}
}

func TestValidCode(t *testing.T) {
	code := NewCode("c1", "friend@example.com", 0)
	if !ValidCode(code) {
		t.Errorf("Expected generated code %s to validate", code)
	}

	cases := []string{"", "0OIl", "zz", "this-is-not-base58!", "1111111111111111"}
	for _, c := range cases {
		if ValidCode(c) {
			t.Errorf("Expected %q to be rejected", c)
		}
	}
}
