package utils

import (
	"testing"
)

func TestIsIdentifier(t *testing.T) {
	valid := []string{"n", "m_2", "_", "_private", "Batch", "xYz_0"}
	for _, name := range valid {
		if !IsIdentifier(name) {
			t.Errorf("IsIdentifier(%q) = false, want true", name)
		}
	}
	invalid := []string{"", "2n", "9", "a-b", "a b", "n!", "π"}
	for _, name := range invalid {
		if IsIdentifier(name) {
			t.Errorf("IsIdentifier(%q) = true, want false", name)
		}
	}
}

func TestIsDigits(t *testing.T) {
	valid := []string{"0", "7", "10", "00123"}
	for _, s := range valid {
		if !IsDigits(s) {
			t.Errorf("IsDigits(%q) = false, want true", s)
		}
	}
	invalid := []string{"", "x", "3n", "-1", "1.5", " 2"}
	for _, s := range invalid {
		if IsDigits(s) {
			t.Errorf("IsDigits(%q) = true, want false", s)
		}
	}
}
