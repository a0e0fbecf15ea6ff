package core

import "testing"

func TestShareDefault(t *testing.T) {
	s := NewShare[int64](-1)
	if s.Read() != -1 {
		t.Errorf("Expected initial value -1, got %d", s.Read())
	}

	var empty Share[*Tracker]
	if empty.Read() != nil {
		t.Error("Expected nil from zero-value share")
	}
}

func TestShareLastWriteWins(t *testing.T) {
	s := NewShare("")

	s.Write("a")
	if s.Read() != "a" {
		t.Errorf("Expected 'a', got '%s'", s.Read())
	}

	s.Write("b")
	s.Write("c")
	if s.Read() != "c" {
		t.Errorf("Expected 'c', got '%s'", s.Read())
	}
	// Reads do not consume.
	if s.Read() != "c" {
		t.Errorf("Expected 'c' on second read, got '%s'", s.Read())
	}
}
