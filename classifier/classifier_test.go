package classifier

import (
	"testing"

	"civicwatch/models"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	testCases := []struct {
		name         string
		text         string
		wantType     string
		wantCategory string
	}{
		{
			name:         "corruption dominates",
			text:         "Police officer caught in bribery and fraud scheme, corruption in the department",
			wantType:     models.TypeCorruption,
			wantCategory: "police",
		},
		{
			name:         "hero dominates",
			text:         "Volunteer rescued three children and helped organize a donation drive",
			wantType:     models.TypeHero,
			wantCategory: "rescue",
		},
		{
			name:     "no keywords",
			text:     "The weather was mild on Tuesday afternoon",
			wantType: "",
		},
		{
			name:     "tie yields no classification",
			text:     "fraud volunteer",
			wantType: "",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.text)
			assert.Equal(t, tc.wantType, got.Type)
			if tc.wantType == "" {
				assert.Zero(t, got.Confidence)
				assert.Empty(t, got.Tags)
				return
			}
			assert.Equal(t, tc.wantCategory, got.Category)
			assert.Greater(t, got.Confidence, 0.0)
			assert.NotEmpty(t, got.Tags)
		})
	}
}

func TestConfidenceSaturates(t *testing.T) {
	text := "corruption corruption corruption corruption corruption corruption " +
		"corruption corruption corruption corruption corruption corruption"
	got := Classify(text)
	assert.Equal(t, models.TypeCorruption, got.Type)
	assert.Equal(t, 1.0, got.Confidence)
}

func TestTagsCapped(t *testing.T) {
	text := "corruption scam fraud bribery embezzlement kickback graft nepotism"
	got := Classify(text)
	assert.Len(t, got.Tags, 5)
}

func TestCategoryFallback(t *testing.T) {
	got := Classify("a selfless act of bravery yesterday")
	assert.Equal(t, models.TypeHero, got.Type)
	// "bravery" appears in the text, so it wins over the default.
	assert.Equal(t, "bravery", got.Category)

	got = Classify("an official demanded a kickback")
	assert.Equal(t, models.TypeCorruption, got.Type)
	assert.Equal(t, "political", got.Category)
}
