package tokens

import "github.com/wolfman30/spa-concierge/internal/llm"

// Fit trims messages so their total token count is at most limit.
//
// The leading system message and the most recent user message are always kept.
// Other messages are dropped oldest first until the budget is met or nothing
// else is left to drop; the result may therefore still exceed limit when the
// two protected messages alone do. Fit never mutates its input and is idempotent.
func Fit(messages []llm.Message, limit int, counter Counter) []llm.Message {
	out := make([]llm.Message, len(messages))
	copy(out, messages)
	if len(out) == 0 {
		return out
	}

	counts := make([]int, len(out))
	total := 0
	for i, msg := range out {
		counts[i] = counter.CountMessage(msg)
		total += counts[i]
	}
	if total <= limit {
		return out
	}

	protected := make([]bool, len(out))
	if out[0].Role == llm.RoleSystem {
		protected[0] = true
	}
	for i := len(out) - 1; i >= 0; i-- {
		if out[i].Role == llm.RoleUser {
			protected[i] = true
			break
		}
	}

	drop := make([]bool, len(out))
	for i := range out {
		if total <= limit {
			break
		}
		if protected[i] {
			continue
		}
		drop[i] = true
		total -= counts[i]
	}

	kept := out[:0]
	for i, msg := range out {
		if !drop[i] {
			kept = append(kept, msg)
		}
	}
	return kept
}
