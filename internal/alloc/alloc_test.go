package alloc

import "testing"

func TestBump(t *testing.T) {
	a := NewBump(0x1000, 0x2000, 0x10)

	if addr, ok := a.Alloc(0x10); !ok || addr != 0x1000 {
		t.Fatalf("Alloc(0x10) = %#x, %v; want 0x1000, true", addr, ok)
	}
	if addr, ok := a.Alloc(1); !ok || addr != 0x1010 {
		t.Fatalf("Alloc(1) = %#x, %v; want 0x1010, true", addr, ok)
	}
	if addr, ok := a.Alloc(1); !ok || addr != 0x1020 {
		t.Fatalf("Alloc(1) = %#x, %v; want 0x1020, true", addr, ok)
	}
	if _, ok := a.Alloc(0x1000); ok {
		t.Fatal("Alloc(0x1000) should fail: out of room")
	}
}

func TestChained(t *testing.T) {
	c := NewChained(
		NewBump(0x1000, 0x1040, 0x10),
		NewBump(0x2000, 0x2020, 0x10),
	)

	if addr, ok := c.Alloc(0x10); !ok || addr != 0x1000 {
		t.Fatalf("Alloc(0x10) = %#x, %v; want 0x1000, true", addr, ok)
	}
	if addr, ok := c.Alloc(0x20); !ok || addr != 0x1010 {
		t.Fatalf("Alloc(0x20) = %#x, %v; want 0x1010, true", addr, ok)
	}
	if addr, ok := c.Alloc(0x20); !ok || addr != 0x2000 {
		t.Fatalf("Alloc(0x20) = %#x, %v; want 0x2000, true", addr, ok)
	}
	if _, ok := c.Alloc(0x20); ok {
		t.Fatal("Alloc(0x20) should fail: both backends exhausted")
	}
}

func TestChainedNoCrossBackendSplit(t *testing.T) {
	c := NewChained(
		NewBump(0x1000, 0x1010, 0x10),
		NewBump(0x2000, 0x2010, 0x10),
	)

	// Neither backend alone has 0x20 bytes; the request must fail rather
	// than being split across both.
	if _, ok := c.Alloc(0x20); ok {
		t.Fatal("an allocation larger than every remaining backend must fail, not split")
	}
}
