package roomname

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

var adjectives = []string{
	"amber", "brisk", "calm", "dapper", "eager", "fuzzy", "gentle", "hollow", "icy", "jolly",
	"keen", "lively", "mellow", "nimble", "odd", "plucky", "quiet", "rusty", "sunny", "tidy",
	"upbeat", "vivid", "witty", "young", "zesty", "bold", "cozy", "dusky", "frosty", "glossy",
}

var animals = []string{
	"otter", "heron", "badger", "lynx", "gecko", "panda", "walrus", "finch", "moose", "yak",
	"koala", "bison", "raven", "tapir", "ibis", "llama", "newt", "okapi", "puffin", "quail",
	"seal", "toad", "vole", "wombat", "zebra", "ferret", "marten", "narwhal", "stoat", "crane",
}

var places = []string{
	"harbor", "meadow", "canyon", "grove", "summit", "lagoon", "prairie", "delta", "fjord", "mesa",
	"orchard", "quarry", "ridge", "valley", "atoll", "bayou", "cove", "dune", "glacier", "marsh",
}

// Generate returns a memorable room id of the form adjective-animal-place.
// taken is consulted so an id that is already in use is never returned; nil
// means nothing is taken.
func Generate(taken func(string) bool) (string, error) {
	const attempts = 32
	for i := 0; i < attempts; i++ {
		parts := make([]string, 0, 3)
		for _, list := range [][]string{adjectives, animals, places} {
			idx, err := randomIndex(len(list))
			if err != nil {
				return "", err
			}
			parts = append(parts, list[idx])
		}

		id := strings.Join(parts, "-")
		if taken == nil || !taken(id) {
			return id, nil
		}
	}
	return "", fmt.Errorf("no free room name after %d attempts", attempts)
}

// randomIndex returns a cryptographically secure random index for a slice of given length.
func randomIndex(max int) (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0, fmt.Errorf("generate random index: %w", err)
	}
	return int(n.Int64()), nil
}
