package chat

import (
	"math/rand"
	"strings"
	"unicode/utf8"
)

// MaxTextRunes bounds the length of a chat message after trimming.
const MaxTextRunes = 500

const (
	// RateLimitedText is returned to senders that hit the cooldown.
	RateLimitedText = "Please wait a moment before sending another message."
	// InvalidText is returned by the HTTP fallback for rejected payloads.
	InvalidText = "Invalid message"
)

var (
	labelInitials = []string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J"}
	labelColors   = []string{"#8B4513", "#654321", "#5C4033", "#4A3728", "#3C2F2F"}
)

// NormalizeText trims raw and reports whether the result is a sendable
// message.
func NormalizeText(raw string) (string, bool) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", false
	}
	if utf8.RuneCountInString(text) > MaxTextRunes {
		return "", false
	}
	return text, true
}

// LabelGenerator hands out anonymous sender labels. Every accepted message
// gets a fresh label; labels carry no identity across messages.
type LabelGenerator struct {
	rng *rand.Rand
}

// NewLabelGenerator constructs a generator drawing from rng.
func NewLabelGenerator(rng *rand.Rand) *LabelGenerator {
	return &LabelGenerator{rng: rng}
}

// Next returns a label such as "C (#654321)".
func (g *LabelGenerator) Next() string {
	initial := labelInitials[g.intn(len(labelInitials))]
	color := labelColors[g.intn(len(labelColors))]
	return initial + " (" + color + ")"
}

func (g *LabelGenerator) intn(n int) int {
	if g != nil && g.rng != nil {
		return g.rng.Intn(n)
	}
	return rand.Intn(n)
}
