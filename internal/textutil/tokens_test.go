package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"car", "ac", "repair"}, Tokenize("Car AC Repair"))
	assert.Equal(t, []string{"iphone", "15", "screen"}, Tokenize("iPhone-15 screen!"))
	// Single-character tokens are dropped.
	assert.Equal(t, []string{"oil"}, Tokenize("a c oil"))
	assert.Nil(t, Tokenize(""))
}

func TestPhrases(t *testing.T) {
	phrases := Phrases([]string{"car", "ac", "repair"})
	assert.Contains(t, phrases, "car ac repair")
	assert.Contains(t, phrases, "car ac")
	assert.Contains(t, phrases, "ac repair")
	// Longest first.
	assert.Equal(t, "car ac repair", phrases[0])
}

func TestPhrasePresent(t *testing.T) {
	assert.True(t, PhrasePresent("we do car ac repair", "car ac"))
	assert.True(t, PhrasePresent("car-ac servicing", "car ac"))
	assert.False(t, PhrasePresent("caraceous repair", "car ac"))
}

func TestOverlap(t *testing.T) {
	tokens := []string{"car", "ac", "repair"}
	assert.Equal(t, 3, Overlap("Car AC Repair specialists", tokens))
	assert.Equal(t, 1, Overlap("bicycle repair", tokens))
	assert.Equal(t, 0, Overlap("plumbing", tokens))
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "car_ac_repair", Slugify("Car AC Repair"))
	assert.Equal(t, "screen_repair_iphone_16", Slugify(" Screen Repair — iPhone 16! "))
	assert.Equal(t, "", Slugify("---"))
}
