package fraud

import "testing"

func TestValidPixKey(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		valid bool
	}{
		{"email", "maria@example.com", true},
		{"email with subdomain", "joao@pay.example.com.br", true},
		{"email missing domain dot", "maria@example", false},
		{"phone with plus", "+5511987654321", true},
		{"phone without plus", "11987654321", true},
		{"phone minimum length", "12345678", true},
		{"phone too short", "1234567", false},
		{"phone leading zero", "011987654321", false},
		{"cpf eleven digits", "01234567890", true},
		{"cnpj fourteen digits", "01234567000190", true},
		{"twelve digits", "012345678901", false},
		{"empty", "", false},
		{"whitespace only", "   ", false},
		{"random text", "not a pix key", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ValidPixKey(tc.key); got != tc.valid {
				t.Errorf("ValidPixKey(%q) = %v, want %v", tc.key, got, tc.valid)
			}
		})
	}
}
