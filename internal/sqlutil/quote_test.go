package sqlutil

import "testing"

func TestQuoteBacktick(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple name", "users", "`users`"},
		{"with underscore", "user_accounts", "`user_accounts`"},
		{"embedded backtick", "my`table", "`my``table`"},
		{"empty", "", "``"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := QuoteBacktick(tt.input); got != tt.expected {
				t.Errorf("QuoteBacktick(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestQuoteDouble(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple name", "users", `"users"`},
		{"embedded quote", `my"table`, `"my""table"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := QuoteDouble(tt.input); got != tt.expected {
				t.Errorf("QuoteDouble(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestIsValidIdentifier(t *testing.T) {
	valid := []string{"users", "user_accounts", "Table123", "_private"}
	for _, name := range valid {
		if !IsValidIdentifier(name) {
			t.Errorf("expected %q to be valid", name)
		}
	}

	invalid := []string{"", "users; DROP TABLE x", "my-table", "my table", "a`b"}
	for _, name := range invalid {
		if IsValidIdentifier(name) {
			t.Errorf("expected %q to be invalid", name)
		}
	}
}
