package followup

import (
	"testing"
	"time"
)

func TestNextDueDate(t *testing.T) {
	tests := []struct {
		last string
		want string
	}{
		{"2024-01-01", "2024-01-31"},
		{"2024-02-15", "2024-03-16"},
		{"2023-12-15", "2024-01-14"},
		{"2024-05-14", "2024-06-13"},
	}
	for _, tt := range tests {
		last, _ := time.Parse(time.DateOnly, tt.last)
		got := NextDueDate(last).Format(time.DateOnly)
		if got != tt.want {
			t.Errorf("NextDueDate(%s) = %s, want %s", tt.last, got, tt.want)
		}
	}
}
