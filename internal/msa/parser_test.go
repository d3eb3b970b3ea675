package msa

import (
	"errors"
	"reflect"
	"strconv"
	"strings"
	"testing"
)

func parse(t *testing.T, input string) *Result {
	t.Helper()
	p := NewParserFromReader(strings.NewReader(input))
	res, err := p.Parse()
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return res
}

func TestParser_ProteinTwoAlleles(t *testing.T) {
	res := parse(t, "Prot -1\n A*01 A B C D\n A*02 - - X D\n")

	if res.Reference != "A*01" {
		t.Errorf("Expected reference A*01, got %s", res.Reference)
	}
	if res.DNA {
		t.Error("Prot file should not be flagged as DNA")
	}

	wantRef := []Element{Start(-1), Sequence(-1, "ABCD"), End(3)}
	if !reflect.DeepEqual(res.RefElements, wantRef) {
		t.Errorf("Reference elements:\n got %v\nwant %v", res.RefElements, wantRef)
	}

	if len(res.Alternates) != 1 {
		t.Fatalf("Expected 1 alternate, got %d", len(res.Alternates))
	}
	alt := res.Alternates[0]
	if alt.Name != "A*02" {
		t.Errorf("Expected alternate A*02, got %s", alt.Name)
	}
	// The '-' columns copy the reference residues; X closes the first
	// segment and D reopens a second one.
	want := []Element{Start(-1), Sequence(-1, "AB"), End(1), Start(2), Sequence(2, "D"), End(3)}
	if !reflect.DeepEqual(alt.Elements, want) {
		t.Errorf("Alternate elements:\n got %v\nwant %v", alt.Elements, want)
	}
}

func TestParser_BoundaryKeepsPosition(t *testing.T) {
	res := parse(t, "gDNA 0\n A*01 ACG|T\n")

	want := []Element{Start(0), Sequence(0, "ACG"), Boundary(0, 3), Sequence(3, "T"), End(4)}
	if !reflect.DeepEqual(res.RefElements, want) {
		t.Errorf("Reference elements:\n got %v\nwant %v", res.RefElements, want)
	}
}

func TestParser_StartInsertedBeforeBoundary(t *testing.T) {
	// Data opens on the column sharing its position with the just-emitted
	// boundary; Start must land before the boundary in the final list.
	res := parse(t, "gDNA 0\n A*01 |ACGT\n")

	want := []Element{Start(0), Boundary(0, 0), Sequence(0, "ACGT"), End(4)}
	if !reflect.DeepEqual(res.RefElements, want) {
		t.Errorf("Reference elements:\n got %v\nwant %v", res.RefElements, want)
	}
}

func TestParser_GapExtension(t *testing.T) {
	res := parse(t, "gDNA 0\n A*01 ACGTACGTA\n A*02 AC...GT.A\n")

	alt := res.Alternates[0]
	want := []Element{
		Start(0), Sequence(0, "AC"), Gap(2, 3), Sequence(5, "GT"),
		Gap(7, 1), Sequence(8, "A"), End(9),
	}
	if !reflect.DeepEqual(alt.Elements, want) {
		t.Errorf("Alternate elements:\n got %v\nwant %v", alt.Elements, want)
	}
}

func TestParser_MultipleBlocks(t *testing.T) {
	input := `header junk
ignored line

gDNA 0
 A*01 ACGT
 A*02 T---

gDNA 4
 A*01 TTAA
 A*02 --GG

Please see footer
`
	res := parse(t, input)

	wantRef := []Element{Start(0), Sequence(0, "ACGTTTAA"), End(8)}
	if !reflect.DeepEqual(res.RefElements, wantRef) {
		t.Errorf("Reference elements:\n got %v\nwant %v", res.RefElements, wantRef)
	}

	alt := res.Alternates[0]
	wantAlt := []Element{Start(0), Sequence(0, "TCGTTTGG"), End(8)}
	if !reflect.DeepEqual(alt.Elements, wantAlt) {
		t.Errorf("Alternate elements:\n got %v\nwant %v", alt.Elements, wantAlt)
	}
}

func TestParser_UnknownRegionReopens(t *testing.T) {
	res := parse(t, "gDNA 0\n A*01 ACGTAC\n A*02 AC**AC\n")

	alt := res.Alternates[0]
	want := []Element{Start(0), Sequence(0, "AC"), End(2), Start(4), Sequence(4, "AC"), End(6)}
	if !reflect.DeepEqual(alt.Elements, want) {
		t.Errorf("Alternate elements:\n got %v\nwant %v", alt.Elements, want)
	}
}

func TestParser_Errors(t *testing.T) {
	cases := []struct {
		name  string
		input string
	}{
		{"reference dash", "gDNA 0\n A*01 AC-T\n"},
		{"invalid residue", "gDNA 0\n A*01 ACQT\n"},
		{"no position line", "just a header\nand nothing else\n"},
		{"empty data line", "gDNA 0\n A*01 ACGT\n A*02\n"},
		{"malformed header", "gDNA zero\n A*01 ACGT\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := NewParserFromReader(strings.NewReader(tc.input))
			_, err := p.Parse()
			if err == nil {
				t.Fatal("Expected parse error, got nil")
			}
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("Expected *ParseError, got %T: %v", err, err)
			}
		})
	}
}

func TestParser_ErrorNamesAllele(t *testing.T) {
	p := NewParserFromReader(strings.NewReader("gDNA 0\n A*01 AC-T\n"))
	_, err := p.Parse()
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("Expected *ParseError, got %v", err)
	}
	if pe.Allele != "A*01" {
		t.Errorf("Expected allele A*01 in error, got %q", pe.Allele)
	}
	if !strings.Contains(pe.Error(), "A*01") {
		t.Errorf("Error message should name the allele: %s", pe.Error())
	}
}

func TestParser_DropsEmptyAlternates(t *testing.T) {
	res := parse(t, "gDNA 0\n A*01 ACGT\n A*02 ****\n")
	if len(res.Alternates) != 0 {
		t.Errorf("Expected empty alternate to be dropped, got %v", res.Alternates)
	}
}

func TestParser_ElementsMonotone(t *testing.T) {
	res := parse(t, "gDNA 0\n A*01 ACG|TAC\n A*02 A..|T*C\n")

	for _, name := range res.AlleleNames() {
		elems, ok := res.Elements(name)
		if !ok {
			t.Fatalf("missing elements for %s", name)
		}
		sawStart := false
		for i, e := range elems {
			if i > 0 && e.Pos < elems[i-1].Pos {
				t.Errorf("%s: element %v before %v out of order", name, e, elems[i-1])
			}
			switch e.Kind {
			case KindStart:
				sawStart = true
			case KindSequence, KindGap:
				if !sawStart {
					t.Errorf("%s: %v before any Start", name, e)
				}
			}
		}
	}
}

func TestParser_BoundariesMatchReference(t *testing.T) {
	res := parse(t, "gDNA 0\n A*01 AC|GT|AC\n A*02 -T|--|C-\n")

	type bp struct{ idx, pos int }
	collect := func(elems []Element) []bp {
		var out []bp
		for _, e := range elems {
			if e.Kind == KindBoundary {
				out = append(out, bp{e.Index, e.Pos})
			}
		}
		return out
	}

	ref := collect(res.RefElements)
	alt := collect(res.Alternates[0].Elements)
	if !reflect.DeepEqual(ref, alt) {
		t.Errorf("Boundaries differ: ref %v alt %v", ref, alt)
	}
}

func TestParser_RoundTrip(t *testing.T) {
	inputs := []string{
		"gDNA 0\n A*01 ACGTACGT\n A*02 AC..GTCT\n",
		"gDNA 0\n A*01 AC|GTAC\n A*02 TC|GT**\n",
		"Prot -1\n A*01 MKLV\n A*02 MK*V\n",
	}

	for _, input := range inputs {
		first := parse(t, input)
		for _, name := range first.AlleleNames() {
			elems, _ := first.Elements(name)
			stream := Reserialize(elems)

			// Feed the stream back with a header landing the first residue
			// on the same position; the reparsed elements must match, with
			// copied residues spelled out.
			header := "gDNA " + strconv.Itoa(elems[0].Pos)
			if !first.DNA {
				header = "Prot " + strconv.Itoa(elems[0].Pos)
			}
			rerun := parse(t, header+"\n X "+stream+"\n")
			if !reflect.DeepEqual(rerun.RefElements, elems) {
				t.Errorf("%s: round trip mismatch:\n got %v\nwant %v", name, rerun.RefElements, elems)
			}
		}
	}
}
