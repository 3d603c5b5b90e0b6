// Package nickname generates display names for accounts registered without one.
package nickname

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

var adjectives = []string{
	"swift", "quiet", "brave", "clever", "gentle", "bold",
	"keen", "lucky", "mellow", "nimble", "proud", "wry",
}

var animals = []string{
	"otter", "falcon", "badger", "heron", "lynx", "marten",
	"plover", "stoat", "tern", "vole", "wren", "ibex",
}

// Generate returns a nickname of the form "swift_otter_4821". Collisions are
// possible; callers are expected to retry against the uniqueness check.
func Generate() (string, error) {
	adj, err := pick(len(adjectives))
	if err != nil {
		return "", err
	}
	animal, err := pick(len(animals))
	if err != nil {
		return "", err
	}
	suffix, err := pick(10000)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s_%s_%d", adjectives[adj], animals[animal], suffix), nil
}

func pick(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("failed to read random source: %w", err)
	}
	return int(v.Int64()), nil
}
