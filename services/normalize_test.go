package services

import "testing"

func TestCleanText(t *testing.T) {
	got := CleanText("Hello &amp; welcome\t\tto the &quot;record&quot;\n")
	want := `Hello & welcome to the "record"`
	if got != want {
		t.Fatalf("CleanText = %q, want %q", got, want)
	}
}

func TestNormalizeStatementText(t *testing.T) {
	got := NormalizeStatementText("“I never said that” – he claimed,  twice.")
	want := `"I never said that" - he claimed, twice.`
	if got != want {
		t.Fatalf("NormalizeStatementText = %q, want %q", got, want)
	}
}
