package similarity

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Dune: Part Two", "dune part two"},
		{"Me & You", "me and you"},
		{"Amélie", "amelie"},
		{"The.Matrix_1999", "the matrix 1999"},
		{"  spaced   out  ", "spaced out"},
	}

	for _, tc := range cases {
		if got := Normalize(tc.in); got != tc.want {
			t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestScoreIdenticalAfterNormalization(t *testing.T) {
	if got := Score("Dune: Part Two", "dune part two"); got != 1.0 {
		t.Fatalf("expected 1.0, got %f", got)
	}
}

func TestScoreSuffixContainment(t *testing.T) {
	got := Score("Will Vinton's Claymation Christmas", "Claymation Christmas")
	if got < 0.9 {
		t.Fatalf("expected suffix containment score >= 0.9, got %f", got)
	}
}

func TestScoreDistinctTitles(t *testing.T) {
	if got := Score("Arrival", "Inception"); got > 0.5 {
		t.Fatalf("expected low score for unrelated titles, got %f", got)
	}
}

func TestContains(t *testing.T) {
	if !Contains("Dune: Part Two", "dune") {
		t.Fatal("expected containment for substring title")
	}
	if Contains("Arrival", "Inception") {
		t.Fatal("unexpected containment for unrelated titles")
	}
}
