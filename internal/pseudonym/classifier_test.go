package pseudonym

import "testing"

func TestCasingClassifier(t *testing.T) {
	c := NewCasingClassifier()

	tests := []struct {
		raw  string
		want Kind
	}{
		{"Jean", KindFirstName},
		{"Éloïse", KindFirstName},
		{"Jean-Luc", KindFirstName},
		{"DUPONT", KindLastName},
		{"dupont", KindLastName},
		{"McDonald", KindLastName},
		{"Jean Dupont", KindFullName},
		{"JEAN DUPONT", KindFullName},
		{"", KindLastName},
		{"123", KindLastName},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := c.Classify(tt.raw); got != tt.want {
				t.Errorf("Classify(%q) = %s, want %s", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNameClassifierFunc(t *testing.T) {
	var c NameClassifier = NameClassifierFunc(func(string) Kind { return KindFullName })
	if got := c.Classify("X"); got != KindFullName {
		t.Errorf("Classify = %s, want %s", got, KindFullName)
	}
}
