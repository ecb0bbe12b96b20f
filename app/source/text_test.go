package source

import "testing"

func TestHTMLToText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain text", "  hello   world ", "hello world"},
		{"paragraphs", "<p>One</p><p>Two  words</p>", "One\nTwo words"},
		{"line breaks", "a<br>b", "a\nb"},
		{"scripts removed", "<p>x</p><script>alert(1)</script>", "x"},
		{"entities", "<p>R&amp;D</p>", "R&D"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTMLToText(tt.input); got != tt.expected {
				t.Errorf("Expected %q, got: %q", tt.expected, got)
			}
		})
	}
}

func TestCleanText(t *testing.T) {
	got := CleanText("line one\r\n\r\n  line   two \rline three")
	if got != "line one\nline two\nline three" {
		t.Errorf("Unexpected cleaned text: %q", got)
	}
}
