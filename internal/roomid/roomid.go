// Package roomid generates memorable room names for calls where the user
// did not pick one. Names are word-word-word, each word drawn from a
// different list, so "silver-otter-comet" rather than an opaque token.
package roomid

import (
	"crypto/rand"
	"log"
	"math/big"
	"strings"
)

var adjectives = []string{
	"tiny", "happy", "sleepy", "sparkly", "silly", "jolly", "cozy", "shiny",
	"golden", "silver", "crimson", "emerald", "bright", "gentle", "brave",
	"calm", "swift", "silent", "bouncy", "fuzzy", "merry", "peppy",
}

var animals = []string{
	"kitten", "puppy", "bunny", "panda", "koala", "fox", "otter", "hedgehog",
	"squirrel", "hamster", "fawn", "raccoon", "dolphin", "narwhal", "penguin",
	"flamingo", "sparrow", "robin", "toucan", "parrot",
}

var things = []string{
	"sunbeam", "stardust", "muffin", "bubble", "glimmer", "echo", "marble",
	"maple", "cocoa", "breeze", "meadow", "willow", "ember", "poppy", "pixel",
	"lantern", "puddle", "pebble", "rocket", "comet", "orbit", "nebula",
}

// Generate returns a fresh three-word room name.
func Generate() string {
	words := []string{
		adjectives[randomIndex(len(adjectives))],
		animals[randomIndex(len(animals))],
		things[randomIndex(len(things))],
	}
	return strings.Join(words, "-")
}

// randomIndex returns a cryptographically secure random index for a slice
// of the given length.
func randomIndex(max int) int {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		log.Panic("Failed to generate random index:", err)
	}
	return int(n.Int64())
}
