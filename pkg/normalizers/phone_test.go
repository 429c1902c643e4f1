package normalizers

import (
	"testing"

	apperrors "github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhoneNormalizer_Normalize(t *testing.T) {
	p := NewPhoneNormalizer("")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bare international digits", "27827001116", "+27827001116"},
		{"leading plus", "+27827001116", "+27827001116"},
		{"whatsapp transport prefix", "whatsapp:+27827001116", "+27827001116"},
		{"mixed case prefix", "WhatsApp:+27827001116", "+27827001116"},
		{"local trunk format", "082 700 1116", "+27827001116"},
		{"international dialing prefix", "0027827001116", "+27827001116"},
		{"formatting characters", "+27 (82) 700-1116", "+27827001116"},
		{"surrounding whitespace", "  27827001116 ", "+27827001116"},
		{"other country keeps its code", "+14155550123", "+14155550123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Normalize(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPhoneNormalizer_Deterministic(t *testing.T) {
	p := NewPhoneNormalizer("")
	normalize := func(raw string) string {
		got, err := p.Normalize(raw)
		require.NoError(t, err)
		return got
	}

	a := normalize("27827001116")
	assert.Equal(t, a, normalize("+27827001116"))
	assert.Equal(t, a, normalize("whatsapp:+27827001116"))
	assert.Equal(t, "+27827001116", a)
	assert.Equal(t, a, normalize(a))
}

func TestPhoneNormalizer_Invalid(t *testing.T) {
	p := NewPhoneNormalizer("27")

	inputs := []string{
		"", "whatsapp:", "abc", "12345", "1234567890123456",
		"+0827001116",
		"00027827001116",
		"٠٨٢٧٠٠١١١٦",
	}
	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			_, err := p.Normalize(input)
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err))
		})
	}
}

func TestPhoneNormalizer_CustomCountryCode(t *testing.T) {
	p := NewPhoneNormalizer("+44")
	got, err := p.Normalize("07700900123")
	require.NoError(t, err)
	assert.Equal(t, "+447700900123", got)
	assert.True(t, p.Equal("07700900123", "+44 7700 900123"))
	assert.False(t, p.Equal("07700900123", "nope"))
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "  Alice   Smith ", want: "Alice Smith"},
		{in: "O'Brien\tJr.", want: "O'Brien Jr."},
		{in: "   ", want: ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DisplayName(tt.in))
		assert.Equal(t, tt.want, SearchTerm(tt.in))
	}
}

func TestDigitsOnly(t *testing.T) {
	assert.Equal(t, "27827001116", DigitsOnly("whatsapp:+27 (82) 700-1116"))
	assert.Equal(t, "", DigitsOnly("none"))
	assert.Equal(t, "", DigitsOnly("٠٨٢٧"))
}
