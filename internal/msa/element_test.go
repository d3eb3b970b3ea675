package msa

import "testing"

func TestElement_EndPos(t *testing.T) {
	cases := []struct {
		e    Element
		want int
	}{
		{Sequence(3, "ACGT"), 7},
		{Gap(5, 2), 7},
		{Boundary(0, 4), 4},
		{Start(1), 1},
		{End(9), 9},
	}
	for _, tc := range cases {
		if got := tc.e.EndPos(); got != tc.want {
			t.Errorf("%v.EndPos() = %d, want %d", tc.e, got, tc.want)
		}
	}
}

func TestReserialize(t *testing.T) {
	cases := []struct {
		name  string
		elems []Element
		want  string
	}{
		{
			"simple",
			[]Element{Start(0), Sequence(0, "ACGT"), End(4)},
			"ACGT",
		},
		{
			"gap and boundary",
			[]Element{Start(0), Sequence(0, "AC"), Gap(2, 3), Boundary(0, 5), Sequence(5, "GT"), End(7)},
			"AC...|GT",
		},
		{
			"unknown span between segments",
			[]Element{Start(0), Sequence(0, "AC"), End(2), Start(4), Sequence(4, "GT"), End(6)},
			"AC**GT",
		},
	}

	for _, tc := range cases {
		if got := Reserialize(tc.elems); got != tc.want {
			t.Errorf("%s: Reserialize = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestSequenceString(t *testing.T) {
	elems := []Element{Start(0), Sequence(0, "AC"), Gap(2, 3), Sequence(5, "GT"), End(7)}
	if got := SequenceString(elems); got != "ACGT" {
		t.Errorf("SequenceString = %q, want ACGT", got)
	}
}

func TestElement_String(t *testing.T) {
	if s := Boundary(2, 7).String(); s != "Boundary(2,7)" {
		t.Errorf("unexpected rendering %q", s)
	}
	if s := Sequence(1, "AC").String(); s != `Sequence(1,"AC")` {
		t.Errorf("unexpected rendering %q", s)
	}
}
