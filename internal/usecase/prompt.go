// File: internal/usecase/prompt.go
package usecase

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// PromptBuilder assembles the prompt for a continuation submission: the
// session's initial prompt, prior exchanges, then the new instruction. When
// the whole thing exceeds the token budget the oldest exchanges are dropped
// first; the initial prompt and the new instruction always survive.
type PromptBuilder struct {
	budget int

	// test seam; production path counts BPE tokens
	count func(s string) int
}

func NewPromptBuilder(encoding string, budget int) (*PromptBuilder, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load token encoding %q: %w", encoding, err)
	}
	if budget <= 0 {
		budget = 8000
	}
	return &PromptBuilder{
		budget: budget,
		count:  func(s string) int { return len(enc.Encode(s, nil, nil)) },
	}, nil
}

func (b *PromptBuilder) Count(s string) int {
	return b.count(s)
}

func (b *PromptBuilder) Build(initialPrompt string, lineage []string, next string) string {
	keepInitial := initialPrompt != "" && initialPrompt != next

	used := b.Count(next)
	if keepInitial {
		used += b.Count(initialPrompt)
	}

	// Walk lineage newest-first, keeping what fits the budget.
	kept := make([]string, 0, len(lineage))
	for i := len(lineage) - 1; i >= 0; i-- {
		n := b.Count(lineage[i])
		if used+n > b.budget {
			break
		}
		used += n
		kept = append([]string{lineage[i]}, kept...)
	}

	parts := make([]string, 0, len(kept)+2)
	if keepInitial {
		parts = append(parts, initialPrompt)
	}
	parts = append(parts, kept...)
	parts = append(parts, next)
	return strings.Join(parts, "\n\n")
}
