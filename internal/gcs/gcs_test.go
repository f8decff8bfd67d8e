package gcs

import "testing"

func TestFilename(t *testing.T) {
	tests := []struct {
		uri  string
		want string
	}{
		{"gs://statements/imports/extracto.csv", "extracto.csv"},
		{"gs://statements/extracto.xlsx", "extracto.xlsx"},
		{"gs://statements", "statements"},
	}

	for _, tt := range tests {
		if got := Filename(tt.uri); got != tt.want {
			t.Errorf("Filename(%q) = %q, want %q", tt.uri, got, tt.want)
		}
	}
}

func TestSplitURI(t *testing.T) {
	bucket, object, err := splitURI("gs://statements/imports/extracto.csv")
	if err != nil {
		t.Fatalf("splitURI() error = %v", err)
	}
	if bucket != "statements" || object != "imports/extracto.csv" {
		t.Errorf("splitURI() = %q, %q", bucket, object)
	}

	for _, uri := range []string{"http://x/y", "gs://bucket", "gs://bucket/"} {
		if _, _, err := splitURI(uri); err == nil {
			t.Errorf("splitURI(%q) error = nil, want error", uri)
		}
	}
}
