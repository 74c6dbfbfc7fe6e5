package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanHTML(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain text untouched",
			input:    "meeting moved to thursday",
			expected: "meeting moved to thursday",
		},
		{
			name:     "tags stripped",
			input:    "<p>Hello <b>world</b></p>",
			expected: "Hello world",
		},
		{
			name:     "script content removed",
			input:    "<script>var tracking = 1;</script>Invoice attached",
			expected: "Invoice attached",
		},
		{
			name:     "style and head removed",
			input:    "<head><title>x</title></head><style>.a{color:red}</style><div>body text</div>",
			expected: "body text",
		},
		{
			name:     "entities unescaped and whitespace collapsed",
			input:    "Fish&nbsp;&amp;   Chips\n\n<br>tonight",
			expected: "Fish & Chips tonight",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanHTML(tt.input))
		})
	}
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", Preview("short", 200))

	assert.Equal(t, "aaaaaaaaaa...", Preview("<p>aaaaaaaaaaaaaaaaaaaa</p>", 10))
}
