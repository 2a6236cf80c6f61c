package toolargs

import (
	"testing"
)

func TestParseInvalidJSON(t *testing.T) {
	testCases := []string{
		"",
		"{",
		"not json",
		`{"query": `,
	}

	for _, raw := range testCases {
		a := Parse(raw)
		if a.Valid() {
			t.Errorf("Parse(%q): expected invalid", raw)
		}
		if got := a.Str("query"); got != "" {
			t.Errorf("Parse(%q).Str = %q, want empty", raw, got)
		}
		if got := a.Summary(); got != "" {
			t.Errorf("Parse(%q).Summary = %q, want empty", raw, got)
		}
	}
}

func TestStrFirstPresentKey(t *testing.T) {
	a := Parse(`{"file_path": "main.go", "query": "cats"}`)

	if got := a.Str("path", "file_path"); got != "main.go" {
		t.Errorf("Str(path, file_path) = %q, want main.go", got)
	}
	if got := a.Str("missing"); got != "" {
		t.Errorf("Str(missing) = %q, want empty", got)
	}
	// Numbers render as strings rather than failing.
	b := Parse(`{"count": 3}`)
	if got := b.Str("count"); got != "3" {
		t.Errorf("Str(count) = %q, want 3", got)
	}
}

func TestSummary(t *testing.T) {
	testCases := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "well_known_query",
			raw:  `{"query": "cats"}`,
			want: "cats",
		},
		{
			name: "well_known_command",
			raw:  `{"command": "ls -la"}`,
			want: "ls -la",
		},
		{
			name: "field_listing_fallback",
			raw:  `{"target_branch": "main", "force": "true"}`,
			want: "Target Branch: main, Force: true",
		},
		{
			name: "skips_empty_values",
			raw:  `{"query": "  ", "path": "a.go"}`,
			want: "a.go",
		},
		{
			name: "empty_object",
			raw:  `{}`,
			want: "",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Parse(tc.raw).Summary(); got != tc.want {
				t.Errorf("Summary = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestFriendlyToolName(t *testing.T) {
	testCases := []struct {
		in   string
		want string
	}{
		{"lumi_search", "Search"},
		{"replace_string_in_file", "Replace String In File"},
		{"announce_file", "Announce File"},
		{"fetchSkill", "Fetch Skill"},
		{"powershell", "Powershell"},
		{"", ""},
	}

	for _, tc := range testCases {
		if got := FriendlyToolName(tc.in); got != tc.want {
			t.Errorf("FriendlyToolName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFields(t *testing.T) {
	a := Parse(`{"b": "two", "a": 1}`)
	fields := a.Fields()
	if len(fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(fields))
	}
	// Document order, not sorted.
	if fields[0].Name != "b" || fields[1].Name != "a" {
		t.Errorf("unexpected order: %+v", fields)
	}

	if got := Parse(`[1,2]`).Fields(); got != nil {
		t.Errorf("Fields on array = %v, want nil", got)
	}
}
