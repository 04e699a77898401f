package normalize

import "testing"

func TestText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"plain", "Middlemarch", "Middlemarch"},
		{"trims", "  Middlemarch\t\n", "Middlemarch"},
		{"collapses inner whitespace", "War  and Peace", "War and Peace"},
		{"composes accents", "Cafe\u0301 Society", "Caf\u00e9 Society"},
		{"strips control characters", "Mrs\x00 Dalloway\x07", "Mrs Dalloway"},
		{"drops invalid utf8", "Ulysses\xff", "Ulysses"},
		{"only whitespace", " \t ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Text(tt.input)
			if result != tt.expected {
				t.Errorf("Text(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestText_Idempotent(t *testing.T) {
	inputs := []string{"Cafe\u0301  Society ", "  a\tb  c", "Ulysses\xff"}
	for _, in := range inputs {
		once := Text(in)
		if twice := Text(once); twice != once {
			t.Errorf("Text not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}
