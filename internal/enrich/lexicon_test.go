package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLabelForScore(t *testing.T) {
	assert.Equal(t, "positive", LabelForScore(0.10))
	assert.Equal(t, "positive", LabelForScore(0.05))
	assert.Equal(t, "negative", LabelForScore(-0.20))
	assert.Equal(t, "negative", LabelForScore(-0.05))
	assert.Equal(t, "neutral", LabelForScore(0.00))
	assert.Equal(t, "neutral", LabelForScore(0.04))
	assert.Equal(t, "neutral", LabelForScore(-0.04))
}

func TestLexiconCompound(t *testing.T) {
	lex := NewLexicon()

	assert.Greater(t, lex.Compound("This is a great day, I love it"), 0.05)
	assert.Less(t, lex.Compound("This is terrible, I hate everything"), -0.05)
	assert.Equal(t, 0.0, lex.Compound("the quick brown fox"))
	assert.Equal(t, 0.0, lex.Compound(""))
}

func TestLexiconNegationFlipsValence(t *testing.T) {
	lex := NewLexicon()

	positive := lex.Compound("this is good")
	negated := lex.Compound("this is not good")
	assert.Greater(t, positive, 0.0)
	assert.Less(t, negated, 0.0)
}

func TestLexiconBoosterAmplifies(t *testing.T) {
	lex := NewLexicon()

	plain := lex.Compound("this is good")
	boosted := lex.Compound("this is very good")
	assert.Greater(t, boosted, plain)
}

func TestLexiconDeterministic(t *testing.T) {
	lex := NewLexicon()
	text := "an absolutely wonderful and amazing announcement"
	assert.Equal(t, lex.Compound(text), lex.Compound(text))
}
