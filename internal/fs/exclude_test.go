package fs

import "testing"

func TestExcludeMatcher_Defaults(t *testing.T) {
	m := NewExcludeMatcher(nil)

	tests := []struct {
		name string
		want bool
	}{
		{"thumbs.db", true},
		{"Thumbs.db", true},
		{"THUMBS.DB", true},
		{".DS_Store", true},
		{"manifest.html", false},
		{"data", false},
		{"thumbs.db.bak", false},
	}

	for _, tt := range tests {
		if got := m.Match(tt.name); got != tt.want {
			t.Errorf("Match(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestExcludeMatcher_CustomPatterns(t *testing.T) {
	m := NewExcludeMatcher([]string{"*.tmp", "  ", "# a comment", "desktop.ini"})

	tests := []struct {
		name string
		want bool
	}{
		{"work.tmp", true},
		{"WORK.TMP", true},
		{"Desktop.ini", true},
		{"# a comment", false},
		{"work.txt", false},
		{"thumbs.db", true},
	}

	for _, tt := range tests {
		if got := m.Match(tt.name); got != tt.want {
			t.Errorf("Match(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestExcludeMatcher_BadPatternIsSkipped(t *testing.T) {
	m := NewExcludeMatcher([]string{"[unclosed"})

	if m.Match("anything") {
		t.Error("bad pattern should match nothing")
	}
	if !m.Match("thumbs.db") {
		t.Error("defaults should still apply")
	}
}
