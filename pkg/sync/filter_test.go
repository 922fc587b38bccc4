package sync

import "testing"

func TestTranslateGlob(t *testing.T) {
	tests := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"*.log", "app.log", true},
		{"*.log", "sub/deep/app.log", true},
		{"*.log", "app.logs", false},
		{"data?", "data1", true},
		{"data?", "data12", false},
		{"cache/*", "cache/blob", true},
		{"cache/*", "cache", false},
		{"[abc].txt", "a.txt", true},
		{"[abc].txt", "d.txt", false},
		{"[!abc].txt", "d.txt", true},
		{"[!abc].txt", "a.txt", false},
		{"[0-9]*", "42.bin", true},
		{"a+b", "a+b", true},
		{"a+b", "aab", false},
		{"[", "[", true},
		{"[", "x", false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+" vs "+tt.path, func(t *testing.T) {
			re, err := translateGlob(tt.pattern)
			if err != nil {
				t.Fatalf("translateGlob(%q): %v", tt.pattern, err)
			}
			if got := re.MatchString(tt.path); got != tt.want {
				t.Errorf("match(%q, %q) = %v, want %v", tt.pattern, tt.path, got, tt.want)
			}
		})
	}
}

func TestPatternFilter(t *testing.T) {
	tests := []struct {
		name     string
		includes []string
		excludes []string
		path     string
		want     bool
	}{
		{"no patterns pass everything", nil, nil, "anything/at/all", true},
		{"include match", []string{"*.go"}, nil, "pkg/main.go", true},
		{"include miss", []string{"*.go"}, nil, "README.md", false},
		{"exclude match", nil, []string{"*.tmp"}, "build/x.tmp", false},
		{"exclude miss", nil, []string{"*.tmp"}, "build/x.o", true},
		{"excludes beat includes", []string{"*.go"}, []string{"vendor*"}, "vendor/dep.go", false},
		{"second include matches", []string{"*.go", "*.md"}, nil, "README.md", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := newPatternFilter(tt.includes, tt.excludes)
			if err != nil {
				t.Fatalf("newPatternFilter: %v", err)
			}
			if got := f.match(tt.path); got != tt.want {
				t.Errorf("match(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestPatternFilterBadPattern(t *testing.T) {
	if _, err := newPatternFilter([]string{"[z-a]"}, nil); err == nil {
		t.Error("inverted range compiled without error")
	}
}
