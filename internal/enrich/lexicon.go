package enrich

import (
	"math"
	"strings"
	"unicode"
)

// Lexicon is a deterministic valence-based sentiment scorer. Each known
// word carries a valence; negations flip it, boosters amplify it, and the
// summed valence is normalized into a -1..1 compound score.
type Lexicon struct {
	valences map[string]float64
	boosters map[string]float64
	negators map[string]bool
}

// normalizationAlpha dampens the compound score so a handful of strong
// words cannot saturate it.
const normalizationAlpha = 15.0

// negationScope is how many preceding tokens a negator reaches.
const negationScope = 3

// NewLexicon builds the default analyzer.
func NewLexicon() *Lexicon {
	return &Lexicon{
		valences: defaultValences,
		boosters: defaultBoosters,
		negators: defaultNegators,
	}
}

// Compound scores a text into [-1, 1]. Empty or entirely unknown text
// scores exactly zero.
func (l *Lexicon) Compound(text string) float64 {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return 0
	}

	var total float64
	for i, token := range tokens {
		valence, ok := l.valences[token]
		if !ok {
			continue
		}

		boost := 0.0
		negated := false
		start := i - negationScope
		if start < 0 {
			start = 0
		}
		for _, prior := range tokens[start:i] {
			if l.negators[prior] {
				negated = true
			}
			if b, ok := l.boosters[prior]; ok {
				boost += b
			}
		}

		if valence > 0 {
			valence += boost
		} else {
			valence -= boost
		}
		if negated {
			valence = -0.74 * valence
		}
		total += valence
	}

	return normalize(total)
}

func normalize(score float64) float64 {
	norm := score / math.Sqrt(score*score+normalizationAlpha)
	if norm > 1 {
		return 1
	}
	if norm < -1 {
		return -1
	}
	return norm
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '\''
	})
}

var defaultNegators = map[string]bool{
	"not": true, "no": true, "never": true, "neither": true, "nor": true,
	"nobody": true, "nothing": true, "n't": true, "don't": true, "doesn't": true,
	"didn't": true, "isn't": true, "wasn't": true, "aren't": true, "won't": true,
	"can't": true, "cannot": true, "couldn't": true, "shouldn't": true,
	"wouldn't": true, "without": true, "hardly": true, "barely": true,
}

var defaultBoosters = map[string]float64{
	"absolutely": 0.3, "amazingly": 0.3, "completely": 0.3, "considerably": 0.2,
	"deeply": 0.3, "especially": 0.2, "extremely": 0.3, "greatly": 0.3,
	"highly": 0.3, "hugely": 0.3, "incredibly": 0.3, "really": 0.3,
	"remarkably": 0.2, "so": 0.3, "totally": 0.2, "truly": 0.2,
	"utterly": 0.3, "very": 0.3,
	"almost": -0.3, "kind": -0.1, "kinda": -0.3, "less": -0.3,
	"marginally": -0.3, "occasionally": -0.2, "partly": -0.3, "slightly": -0.3,
	"somewhat": -0.3, "sort": -0.1, "sorta": -0.3,
}

var defaultValences = map[string]float64{
	// positive
	"admire": 1.6, "adore": 2.4, "amazing": 2.8, "awesome": 3.1,
	"beautiful": 2.9, "best": 3.2, "better": 1.9, "brilliant": 2.8,
	"celebrate": 2.2, "charming": 2.2, "cheerful": 2.5, "congratulations": 2.9,
	"cool": 1.3, "delight": 2.6, "delightful": 2.8, "enjoy": 2.2,
	"excellent": 2.7, "excited": 2.2, "exciting": 2.3, "fantastic": 2.6,
	"favorite": 2.0, "favourite": 2.0, "fun": 2.3, "glad": 2.0,
	"good": 1.9, "grateful": 2.2, "great": 3.1, "happy": 2.7,
	"helpful": 1.8, "hope": 1.9, "hopeful": 2.1, "impressive": 2.3,
	"incredible": 2.6, "inspiring": 2.4, "interesting": 1.7, "joy": 2.8,
	"kind": 2.4, "laugh": 2.2, "like": 1.5, "love": 3.2,
	"lovely": 2.8, "nice": 1.8, "perfect": 2.7, "pleased": 1.9,
	"proud": 2.1, "recommend": 1.6, "relieved": 1.7, "success": 2.5,
	"successful": 2.6, "thank": 1.9, "thanks": 1.9, "thrilled": 2.9,
	"welcome": 2.0, "win": 2.8, "wonderful": 2.7, "wow": 2.8, "yay": 2.4,

	// negative
	"afraid": -2.2, "angry": -2.3, "annoying": -1.9, "anxious": -1.9,
	"awful": -2.0, "bad": -2.5, "broken": -1.6, "crisis": -2.3,
	"cruel": -2.5, "damage": -1.8, "dead": -3.3, "depressing": -2.4,
	"disappointed": -2.0, "disappointing": -2.2, "disaster": -3.1,
	"disgusting": -2.4, "dreadful": -2.6, "fail": -2.3, "failure": -2.5,
	"fear": -2.2, "frustrated": -2.1, "frustrating": -2.1, "hate": -2.7,
	"horrible": -2.5, "hurt": -2.1, "kill": -3.4, "lose": -1.8,
	"loss": -1.9, "lost": -1.3, "mad": -2.2, "mess": -1.6,
	"miserable": -2.8, "nightmare": -2.6, "outrage": -2.3, "pain": -2.3,
	"pathetic": -2.2, "poor": -1.9, "problem": -1.6, "sad": -2.1,
	"scared": -2.2, "sick": -1.9, "sorry": -0.3, "stupid": -2.4,
	"terrible": -2.1, "tragic": -2.8, "ugly": -2.3, "unfair": -2.1,
	"upset": -1.9, "useless": -1.8, "war": -2.9, "worried": -1.9,
	"worse": -2.1, "worst": -3.1, "wrong": -2.1,
}
