package toolregistry

import "testing"

func TestSingleOccurrencePatch(t *testing.T) {
	tests := []struct {
		name    string
		content string
		old     string
		new     string
		want    string
		wantErr bool
	}{
		{"single match", "hello world", "world", "there", "hello there", false},
		{"zero matches", "hello world", "xyz", "abc", "", true},
		{"multiple matches", "aa bb aa", "aa", "cc", "", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := SingleOccurrencePatch(tc.content, tc.old, tc.new)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got result %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}
