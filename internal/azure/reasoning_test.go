package azure

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripReasoning(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "no markup",
			in:   "The sky is blue.",
			want: "The sky is blue.",
		},
		{
			name: "leading think block",
			in:   "<think>Let me check the context.</think>\nThe sky is blue.",
			want: "The sky is blue.",
		},
		{
			name: "multiple blocks",
			in:   "<think>one</think>A<think>two</think>B",
			want: "AB",
		},
		{
			name: "multiline reasoning",
			in:   "<think>line one\nline two\n</think>  Answer.",
			want: "Answer.",
		},
		{
			name: "unterminated block extends to end",
			in:   "Partial answer <think>I was cut off here",
			want: "Partial answer",
		},
		{
			name: "only reasoning",
			in:   "<think>nothing visible</think>",
			want: "",
		},
		{
			name: "stray closing tag is preserved",
			in:   "the literal token </think> appears in the answer",
			want: "the literal token </think> appears in the answer",
		},
		{
			name: "empty input",
			in:   "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripReasoning(tt.in))
		})
	}
}

func TestStripReasoningIdempotent(t *testing.T) {
	inputs := []string{
		"plain answer",
		"<think>a</think>b",
		"x<think>unclosed",
		"</think> dangling",
		"<thi<think>spliced</think>nk>tail",
		"  spaced  ",
	}
	for _, in := range inputs {
		once := StripReasoning(in)
		assert.Equal(t, once, StripReasoning(once), "input %q", in)
	}
}
