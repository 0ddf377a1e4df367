package storage

import "testing"

func TestPageIDSerializeRoundTrip(t *testing.T) {
	cases := []PageID{
		NewPageID(0, 0),
		NewPageID(1, 2),
		NewPageID(-5, 17),
		NewPageID(1<<20, -1),
	}

	for _, pid := range cases {
		got := DeserializePageID(pid.Serialize())
		if got != pid {
			t.Fatalf("round trip mismatch: got %+v, want %+v", got, pid)
		}
	}
}

func TestPageIDEquality(t *testing.T) {
	a := NewPageID(1, 2)
	b := NewPageID(1, 2)
	c := NewPageID(1, 3)
	d := NewPageID(2, 2)

	if a != b {
		t.Fatalf("expected %+v == %+v", a, b)
	}
	if a == c {
		t.Fatalf("expected %+v != %+v", a, c)
	}
	if a == d {
		t.Fatalf("expected %+v != %+v", a, d)
	}
}

func TestPageIDAsMapKey(t *testing.T) {
	m := map[PageID]string{}
	m[NewPageID(1, 1)] = "first"
	m[NewPageID(1, 1)] = "second"

	if len(m) != 1 {
		t.Fatalf("expected a single entry after overwrite, got %d", len(m))
	}
	if m[NewPageID(1, 1)] != "second" {
		t.Fatalf("expected overwrite to take effect, got %q", m[NewPageID(1, 1)])
	}
}

func TestPageIDString(t *testing.T) {
	s := NewPageID(3, 4).String()
	if s == "" {
		t.Fatal("expected a non-empty string representation")
	}
}
