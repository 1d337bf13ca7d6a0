package usecases_test

import (
	"testing"

	"github.com/samirrijal/menuwatch/internal/core/usecases"
)

func TestItemClassifier_Family(t *testing.T) {
	cls, err := usecases.NewItemClassifier(usecases.FamilyIcedCapp, []string{`iced\s*capp`, `capp[^a-zA-Z]{0,3}glac`, " "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name string
		want string
	}{
		{"Iced Capp", usecases.FamilyIcedCapp},
		{"ICEDCAPP Supreme", usecases.FamilyIcedCapp},
		{"Capp glacé moyen", usecases.FamilyIcedCapp},
		{"Capp. Glace", usecases.FamilyIcedCapp},
		{"Café glacé", ""},
		{"Double Double", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := cls.Family(tt.name); got != tt.want {
			t.Errorf("Family(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestItemClassifier_BadPattern(t *testing.T) {
	if _, err := usecases.NewItemClassifier("x", []string{"(unclosed"}); err == nil {
		t.Fatal("expected error for invalid pattern")
	}
}

func TestItemClassifier_Nil(t *testing.T) {
	var cls *usecases.ItemClassifier
	if got := cls.Family("Iced Capp"); got != "" {
		t.Errorf("nil classifier returned %q", got)
	}
}
