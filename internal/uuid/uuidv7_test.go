package uuid

import (
	"testing"

	googleuuid "github.com/google/uuid"
)

func TestNewIsVersion7(t *testing.T) {
	id := New()
	parsed, err := googleuuid.Parse(id)
	if err != nil {
		t.Fatalf("expected parsable id, got %q: %v", id, err)
	}
	if parsed.Version() != 7 {
		t.Errorf("expected version 7, got %d", parsed.Version())
	}
}

func TestNewIsTimeOrdered(t *testing.T) {
	first := New()
	second := New()
	if second <= first {
		t.Errorf("expected %q to sort after %q", second, first)
	}
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{New(), true},
		{"0190f5a2-3b4c-7d8e-9f00-112233445566", true},
		{"urn:uuid:0190f5a2-3b4c-7d8e-9f00-112233445566", false},
		{"0190f5a23b4c7d8e9f00112233445566", false},
		{"admin", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsValid(tt.in); got != tt.want {
			t.Errorf("IsValid(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
