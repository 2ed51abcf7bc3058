package isrc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "USRC17607839", Normalize("usrc17607839"))
	assert.Equal(t, "USRC17607839", Normalize("  UsRc17607839 "))

	for _, in := range []string{"usrc17607839", "USRC17607839", "uSrC17607839", "gbaym0000001"} {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "normalize must be idempotent for %q", in)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{name: "lower case", input: "usrc17607839", want: "USRC17607839"},
		{name: "already upper", input: "GBAYE0601498", want: "GBAYE0601498"},
		{name: "empty", input: "", wantErr: ErrMissing},
		{name: "whitespace", input: "   ", wantErr: ErrMissing},
		{name: "too short", input: "USRC1760783", wantErr: ErrInvalid},
		{name: "too long", input: "USRC176078390", wantErr: ErrInvalid},
		{name: "hyphenated", input: "US-RC1-76-07839", wantErr: ErrInvalid},
		{name: "punctuation", input: "USRC1760783!", wantErr: ErrInvalid},
		{name: "non ascii", input: "USRC1760783é", wantErr: ErrInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDocumentID_Deterministic(t *testing.T) {
	a := DocumentID("usrc17607839")
	b := DocumentID("USRC17607839")
	c := DocumentID("GBAYE0601498")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, 5, int(a.Version()))
}
