package validation

import "testing"

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected string
	}{
		{"Trunk prefix", "0241234567", "+233241234567"},
		{"International with plus", "+233241234567", "+233241234567"},
		{"Country code without plus", "233241234567", "+233241234567"},
		{"Bare local number", "241234567", "+233241234567"},
		{"Formatted with spaces and dashes", " +233 24-123-4567 ", "+233241234567"},
		{"Parenthesised trunk", "(024) 123 4567", "+233241234567"},
		{"Double zero international", "00447700900123", "+447700900123"},
		{"Foreign number without plus", "447700900123", "+447700900123"},
		{"Plus only allowed first", "24+1234567", "+233241234567"},
		{"Short code kept", "1234", "1234"},
		{"Empty", "", ""},
		{"No digits", "phone", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NormalizePhone(tt.raw, "233")
			if result != tt.expected {
				t.Errorf("NormalizePhone(%q) = %q, want %q", tt.raw, result, tt.expected)
			}
		})
	}
}

func TestNormalizePhoneRoundTrip(t *testing.T) {
	a := NormalizePhone("0241234567", "233")
	b := NormalizePhone("+233241234567", "233")
	c := NormalizePhone("233241234567", "233")
	if a != b || b != c {
		t.Fatalf("normalization differs: %q %q %q", a, b, c)
	}
	if again := NormalizePhone(a, "233"); again != a {
		t.Errorf("NormalizePhone is not idempotent: %q -> %q", a, again)
	}
}

func TestPhoneSuffix(t *testing.T) {
	tests := []struct {
		phone    string
		expected string
	}{
		{"+233241234567", "241234567"},
		{"0241234567", "241234567"},
		{"1234", "1234"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.phone, func(t *testing.T) {
			if got := PhoneSuffix(tt.phone); got != tt.expected {
				t.Errorf("PhoneSuffix(%q) = %q, want %q", tt.phone, got, tt.expected)
			}
		})
	}
}

func TestValidateAttachmentRef(t *testing.T) {
	tests := []struct {
		ref      string
		expected bool
	}{
		{"attachments/2024/05/photo.jpg", true},
		{"a.pdf", true},
		{"", false},
		{"/leading/slash.png", false},
		{"../etc/passwd", false},
		{"double//slash.png", false},
		{"has space.png", false},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			if got := ValidateAttachmentRef(tt.ref); got != tt.expected {
				t.Errorf("ValidateAttachmentRef(%q) = %v, want %v", tt.ref, got, tt.expected)
			}
		})
	}
}

func TestValidateExternalRef(t *testing.T) {
	if !ValidateExternalRef("wh_12345-abc") {
		t.Error("expected plain ref to be valid")
	}
	if ValidateExternalRef("") {
		t.Error("expected empty ref to be invalid")
	}
	if ValidateExternalRef("has space") {
		t.Error("expected ref with space to be invalid")
	}
}
