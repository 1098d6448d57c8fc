package session

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// adjectives and nouns back the three-token dash-joined session string
// generator (spec.md §4.5). No example repo in the retrieval pack ships a
// phrase-list generator; this is original, hand-curated content, not an
// ambient concern that would otherwise pull in a third-party dependency.
var adjectives = []string{
	"brave", "calm", "quiet", "swift", "bold", "keen", "bright", "gentle",
	"lucky", "mighty", "nimble", "proud", "sharp", "steady", "vivid", "wild",
	"amber", "azure", "coral", "golden", "hollow", "ivory", "jade", "scarlet",
}

var nouns = []string{
	"otter", "falcon", "badger", "heron", "lynx", "marten", "osprey", "raven",
	"salmon", "sparrow", "tiger", "viper", "walrus", "wolf", "zebra", "bison",
	"canyon", "delta", "fjord", "glacier", "harbor", "meadow", "summit", "tundra",
}

var connectors = []string{"ridge", "creek", "hollow", "bend", "grove", "reach"}

// generateSessionString returns a random three-token dash-joined phrase,
// e.g. "brave-otter-ridge".
func generateSessionString() (string, error) {
	adj, err := pick(adjectives)
	if err != nil {
		return "", err
	}
	noun, err := pick(nouns)
	if err != nil {
		return "", err
	}
	tail, err := pick(connectors)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s-%s", adj, noun, tail), nil
}

func pick(words []string) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(words))))
	if err != nil {
		return "", fmt.Errorf("session: pick random word: %w", err)
	}
	return words[n.Int64()], nil
}
