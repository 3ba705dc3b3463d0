//go:build !integration

package usecase

import (
	"strings"
	"testing"
)

// wordBuilder counts whitespace-separated words instead of BPE tokens, which
// keeps the trimming behavior observable without the real vocabulary.
func wordBuilder(budget int) *PromptBuilder {
	return &PromptBuilder{budget: budget, count: func(s string) int { return len(strings.Fields(s)) }}
}

func TestPromptBuildEverythingFits(t *testing.T) {
	b := wordBuilder(100)
	got := b.Build("initial ask", []string{"one", "two"}, "next step")
	want := "initial ask\n\none\n\ntwo\n\nnext step"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestPromptBuildDropsOldestFirst(t *testing.T) {
	// Budget of 6 words: initial(2) + next(2) leaves 2 for lineage, so only
	// the newest exchange survives.
	b := wordBuilder(6)
	got := b.Build("initial ask", []string{"oldest exchange", "newest exchange"}, "next step")
	want := "initial ask\n\nnewest exchange\n\nnext step"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestPromptBuildInitialAndNextAlwaysSurvive(t *testing.T) {
	b := wordBuilder(1)
	got := b.Build("initial ask", []string{"a b c"}, "next step")
	want := "initial ask\n\nnext step"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestPromptBuildSkipsDuplicateInitial(t *testing.T) {
	b := wordBuilder(100)
	got := b.Build("same prompt", nil, "same prompt")
	if got != "same prompt" {
		t.Fatalf("got %q", got)
	}
}

func TestPromptBuildNoInitial(t *testing.T) {
	b := wordBuilder(100)
	got := b.Build("", []string{"prior"}, "next")
	if got != "prior\n\nnext" {
		t.Fatalf("got %q", got)
	}
}
