package interval

import "testing"

func TestInterval(t *testing.T) {
	i1 := New(0, 5)
	i2 := NewWithSize(0, 5)
	i3 := New(5, 6)
	i4 := New(5, 5)
	i5 := NewWithSize(1, 2)

	if !(Interval{}).Empty() {
		t.Fatal("zero value interval must be empty")
	}

	if i1 != i2 {
		t.Fatalf("New(0,5) != NewWithSize(0,5): %+v vs %+v", i1, i2)
	}
	if i1.Size() != 5 {
		t.Fatalf("i1.Size() = %d, want 5", i1.Size())
	}

	if !NewWithSize(23, 0).Empty() {
		t.Fatal("zero-size interval must be empty")
	}

	if !i1.Adjacent(i3) {
		t.Fatal("[0,5) should be adjacent to [5,6)")
	}
	if i1.Adjacent(i4) {
		t.Fatal("[0,5) should not be adjacent to the empty [5,5)")
	}

	if !i1.Intersects(i1) {
		t.Fatal("an interval must intersect itself")
	}
	if i1.Intersects(i3) {
		t.Fatal("[0,5) must not intersect [5,6)")
	}

	if !i1.Intersection(i3).Empty() {
		t.Fatal("disjoint intervals must have an empty intersection")
	}
	if i1.Intersection(i5) != i5 {
		t.Fatalf("i1.Intersection(i5) = %+v, want %+v", i1.Intersection(i5), i5)
	}
}

func TestIntersectsIffIntersectionNonempty(t *testing.T) {
	cases := []Interval{New(0, 10), New(5, 15), New(10, 20), New(20, 30), New(3, 3)}
	for _, a := range cases {
		for _, b := range cases {
			if a.Empty() || b.Empty() {
				continue
			}
			got := a.Intersects(b)
			want := a.Intersection(b).Size() > 0
			if got != want {
				t.Fatalf("a=%+v b=%+v: Intersects=%v but Intersection.Size>0=%v", a, b, got, want)
			}
		}
	}
}

func TestHull(t *testing.T) {
	h := New(10, 20).Hull(New(5, 12))
	if h != (Interval{From: 5, To: 20}) {
		t.Fatalf("Hull = %+v, want [5,20)", h)
	}
}

func TestJoinable(t *testing.T) {
	if !New(0, 5).Joinable(New(5, 10)) {
		t.Fatal("adjacent intervals must be joinable")
	}
	if !New(0, 5).Joinable(New(3, 10)) {
		t.Fatal("overlapping intervals must be joinable")
	}
	if New(0, 5).Joinable(New(6, 10)) {
		t.Fatal("disjoint, non-adjacent intervals must not be joinable")
	}
}
