package state

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPronunciationEntry_Validate(t *testing.T) {
	tests := []struct {
		name    string
		entry   PronunciationEntry
		wantErr string
	}{
		{"valid", PronunciationEntry{Word: "github", Reading: "ぎっとはぶ"}, ""},
		{"empty word", PronunciationEntry{Word: "", Reading: "x"}, "word"},
		{"word with space", PronunciationEntry{Word: "git hub", Reading: "x"}, "word"},
		{"word with ideographic space", PronunciationEntry{Word: "あ　い", Reading: "x"}, "word"},
		{"blank reading", PronunciationEntry{Word: "go", Reading: "  "}, "reading"},
		{"long reading", PronunciationEntry{Word: "go", Reading: strings.Repeat("あ", MaxReadingLength+1)}, "reading"},
		{"reading at limit", PronunciationEntry{Word: "go", Reading: strings.Repeat("あ", MaxReadingLength)}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.entry.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			var invalid ErrInvalidPronunciation
			if assert.ErrorAs(t, err, &invalid) {
				assert.Equal(t, tt.wantErr, invalid.Field)
			}
		})
	}
}

func TestAnnouncementItem_IsSystem(t *testing.T) {
	assert.True(t, AnnouncementItem{Text: "hi"}.IsSystem())
	assert.False(t, AnnouncementItem{Text: "hi", OriginUserID: "9"}.IsSystem())
}
