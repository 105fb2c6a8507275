package scorer

import (
	"bufio"
	"context"
	"embed"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/Souradip121/sentiment-service/internal/domain"
)

//go:embed data/lexicon.txt
var lexiconFS embed.FS

// negationScalar dampens and flips a valence preceded by a negation.
const negationScalar = -0.74

// boosterScalar is the base intensity adjustment for booster words, decayed
// by 5% per token of distance.
const boosterScalar = 0.293

// negationWindow is how many preceding tokens are scanned for negations and
// boosters.
const negationWindow = 3

var negations = map[string]struct{}{
	"not": {}, "no": {}, "never": {}, "neither": {}, "nor": {},
	"cannot": {}, "can't": {}, "don't": {}, "won't": {}, "isn't": {},
	"wasn't": {}, "weren't": {}, "shouldn't": {}, "couldn't": {},
	"wouldn't": {}, "didn't": {}, "doesn't": {}, "aren't": {},
	"ain't": {}, "hardly": {}, "without": {},
}

var boosters = map[string]float64{
	"very":       boosterScalar,
	"extremely":  boosterScalar,
	"really":     boosterScalar,
	"incredibly": boosterScalar,
	"absolutely": boosterScalar,
	"totally":    boosterScalar,
	"completely": boosterScalar,
	"utterly":    boosterScalar,
	"so":         boosterScalar,
	"super":      boosterScalar,
	"slightly":   -boosterScalar,
	"somewhat":   -boosterScalar,
	"barely":     -boosterScalar,
	"marginally": -boosterScalar,
	"kinda":      -boosterScalar,
}

// Lexicon scores text against an embedded word-valence table. It is the
// fallback path when the remote scorer is unavailable, so it must never do
// I/O and never fail at scoring time.
type Lexicon struct {
	valences map[string]float64
}

// NewLexicon parses the embedded lexicon. It fails if the embedded data is
// missing or empty; callers should treat that as a startup error, not score
// everything as neutral.
func NewLexicon() (*Lexicon, error) {
	f, err := lexiconFS.Open("data/lexicon.txt")
	if err != nil {
		return nil, fmt.Errorf("open embedded lexicon: %w", err)
	}
	defer f.Close()

	valences := make(map[string]float64)
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		word, value, found := strings.Cut(text, "\t")
		if !found {
			return nil, fmt.Errorf("lexicon line %d: missing tab separator", line)
		}
		valence, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("lexicon line %d: %w", line, err)
		}
		valences[strings.ToLower(word)] = valence
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read embedded lexicon: %w", err)
	}
	if len(valences) == 0 {
		return nil, fmt.Errorf("embedded lexicon is empty")
	}

	return &Lexicon{valences: valences}, nil
}

// Size returns the number of lexicon entries.
func (l *Lexicon) Size() int {
	return len(l.valences)
}

// Score computes a compound sentiment score in [-1, 1] for the text. Text
// with no recognized words scores zero. The context is accepted to satisfy
// the shared scorer signature; no I/O happens here.
func (l *Lexicon) Score(_ context.Context, text string) (domain.Result, error) {
	tokens := tokenize(text)

	var sum float64
	for i, tok := range tokens {
		valence, ok := l.valences[tok]
		if !ok {
			continue
		}

		// Scan the preceding window for boosters and negations. Boosters
		// push the valence away from zero (or toward it, for diminishers),
		// decaying with distance; a negation flips and dampens it.
		for dist := 1; dist <= negationWindow && i-dist >= 0; dist++ {
			prev := tokens[i-dist]
			if boost, ok := boosters[prev]; ok {
				decay := 1 - 0.05*float64(dist-1)
				if valence < 0 {
					valence -= boost * decay
				} else {
					valence += boost * decay
				}
			}
			if _, ok := negations[prev]; ok {
				valence *= negationScalar
				break
			}
		}

		sum += valence
	}

	score := normalize(sum)
	return domain.Result{
		Label: domain.LabelForScore(score),
		Score: score,
	}, nil
}

// normalize maps an unbounded valence sum into [-1, 1].
func normalize(sum float64) float64 {
	score := sum / math.Sqrt(sum*sum+15)
	if score > 1 {
		return 1
	}
	if score < -1 {
		return -1
	}
	return score
}

// tokenize lowercases and splits on anything that is not a letter, digit, or
// apostrophe, so contractions like "don't" survive as single tokens.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}
