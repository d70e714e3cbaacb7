package common

import "context"

// Prompter asks the user a yes/no question. Implementations may block
// (interactive clients) or answer from decisions already carried on the
// request (HTTP clients).
type Prompter interface {
	Confirm(ctx context.Context, message string) bool
}

// PrompterFunc adapts a function to the Prompter interface.
type PrompterFunc func(ctx context.Context, message string) bool

// Confirm invokes the wrapped function.
func (f PrompterFunc) Confirm(ctx context.Context, message string) bool {
	return f(ctx, message)
}

// StaticPrompter answers successive prompts from a fixed list, returning
// fallback once the list is exhausted.
type StaticPrompter struct {
	Answers  []bool
	Fallback bool
	next     int
}

// Confirm pops the next scripted answer.
func (p *StaticPrompter) Confirm(_ context.Context, _ string) bool {
	if p.next < len(p.Answers) {
		answer := p.Answers[p.next]
		p.next++
		return answer
	}
	return p.Fallback
}
