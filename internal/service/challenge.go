package service

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	"typeduel/internal/model"
)

// minChallengeWords is the floor for generated challenge length
const minChallengeWords = 80

// ChallengeGenerator produces the text shared by both participants of a session
type ChallengeGenerator interface {
	Generate(limitSec int) model.Challenge
}

// WordCountForLimit sizes a challenge so that nobody runs out of text before the limit
func WordCountForLimit(limitSec int) int {
	return max(minChallengeWords, int(math.Round(float64(limitSec)*6.5)))
}

// WordChallengeGenerator draws words from a fixed list with a seeded xorshift32 RNG
type WordChallengeGenerator struct {
	words []string
	seed  func() uint32
}

// NewWordChallengeGenerator creates a generator over the default word list
func NewWordChallengeGenerator() *WordChallengeGenerator {
	return &WordChallengeGenerator{
		words: defaultWords,
		seed:  rand.Uint32,
	}
}

func (g *WordChallengeGenerator) Generate(limitSec int) model.Challenge {
	return g.FromSeed(g.seed(), WordCountForLimit(limitSec))
}

// FromSeed is deterministic: the same seed and count always yield the same text
func (g *WordChallengeGenerator) FromSeed(seed uint32, count int) model.Challenge {
	rng := newXorshift32(seed)
	out := make([]string, count)
	for i := range out {
		out[i] = g.words[int(rng.float()*float64(len(g.words)))]
	}
	return model.Challenge{
		ID:        fmt.Sprintf("words_%d_%d", seed, count),
		Seed:      seed,
		WordCount: count,
		Content:   strings.Join(out, " "),
	}
}

type xorshift32 struct {
	x uint32
}

func newXorshift32(seed uint32) *xorshift32 {
	if seed == 0 {
		seed = 123456789
	}
	return &xorshift32{x: seed}
}

// float returns a value in [0,1)
func (r *xorshift32) float() float64 {
	r.x ^= r.x << 13
	r.x ^= r.x >> 17
	r.x ^= r.x << 5
	return float64(r.x) / 4294967296
}

var defaultWords = []string{
	"time", "year", "people", "way", "day", "man", "thing", "woman", "life", "child",
	"world", "school", "state", "family", "student", "group", "country", "problem", "hand", "part",
	"place", "case", "week", "company", "system", "program", "question", "work", "number", "night",
	"point", "home", "water", "room", "mother", "area", "money", "story", "fact", "month",
	"lot", "right", "study", "book", "eye", "job", "word", "business", "issue", "side",
	"kind", "head", "house", "service", "friend", "father", "power", "hour", "game", "line",
	"end", "member", "law", "car", "city", "name", "team", "minute", "idea", "kid",
	"body", "back", "parent", "face", "others", "level", "office", "door", "health", "person",
	"art", "war", "history", "party", "result", "change", "morning", "reason", "research", "girl",
	"guy", "moment", "air", "teacher", "force", "education", "good", "new", "first", "last",
	"long", "great", "little", "own", "other", "old", "big", "high", "different", "small",
	"large", "next", "early", "young", "important", "few", "public", "bad", "same", "able",
	"be", "have", "do", "say", "get", "make", "go", "know", "take", "see",
	"come", "think", "look", "want", "give", "use", "find", "tell", "ask", "seem",
	"feel", "try", "leave", "call", "keep", "let", "begin", "help", "show", "hear",
	"play", "run", "move", "live", "believe", "hold", "bring", "write", "stand", "learn",
	"about", "after", "again", "always", "before", "between", "during", "never", "often", "under",
}
