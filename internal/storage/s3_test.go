package storage

import "testing"

func TestSafeObjectKey(t *testing.T) {
	tests := []struct {
		prefix  string
		key     string
		want    string
		wantErr bool
	}{
		{"attachments", "a/b.jpg", "attachments/a/b.jpg", false},
		{"/attachments/", "/a.jpg", "attachments/a.jpg", false},
		{"", "a//b.jpg", "a/b.jpg", false},
		{"attachments", "../secret", "", true},
		{"attachments", "a\\b", "", true},
		{"attachments", "   ", "", true},
	}

	for _, tt := range tests {
		got, err := SafeObjectKey(tt.prefix, tt.key)
		if (err != nil) != tt.wantErr {
			t.Fatalf("SafeObjectKey(%q, %q) err=%v wantErr=%v", tt.prefix, tt.key, err, tt.wantErr)
		}
		if got != tt.want {
			t.Fatalf("SafeObjectKey(%q, %q)=%q want %q", tt.prefix, tt.key, got, tt.want)
		}
	}
}
