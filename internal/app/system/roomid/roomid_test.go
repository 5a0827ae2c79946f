package roomid

import "testing"

func TestGenerate_ShapeAndAlphabet(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 500; i++ {
		id, err := Generate()
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if !Valid(id) {
			t.Fatalf("Generate returned invalid id %q", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q after %d draws", id, i)
		}
		seen[id] = true
	}
}

func TestValid(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"abcdefghij12", true},
		{"000000000000", true},
		{"abcdefghij1", false},
		{"abcdefghij123", false},
		{"ABCDEFGHIJ12", false},
		{"abcdefghij-2", false},
		{"", false},
		{"abcdéfghij1", false},
	}
	for _, tt := range tests {
		if got := Valid(tt.in); got != tt.want {
			t.Errorf("Valid(%q): got %v, want %v", tt.in, got, tt.want)
		}
	}
}
