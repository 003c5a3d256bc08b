package engine

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const (
	MinWinTarget = 5
	MaxWinTarget = 100

	maxNameRunes   = 24
	maxClueRunes   = 120
	maxAvatarBytes = 512
	minSecretLen   = 4
	maxSecretBytes = 72

	// AutoClue is used when the storyteller runs out of time.
	AutoClue = "..."
)

func DefaultRules() Rules {
	return Rules{
		HandSize:           6,
		MinPlayers:         3,
		CardQuota:          200,
		MaxCardBytes:       5 << 20,
		DefaultWinTarget:   30,
		StorytellerTimeout: 90 * time.Second,
		PlayersTimeout:     60 * time.Second,
		VotingTimeout:      60 * time.Second,
		RevealTimeout:      30 * time.Second,
		AdminGrace:         30 * time.Second,
		DisconnectTimeout:  5 * time.Minute,
		SecretCost:         10,
	}
}

// MinDeckSize is the pool size needed to start: enough for every hand plus
// the refills of an expected game, with 30% slack, rounded up to a ten.
func MinDeckSize(players, handSize, winTarget int) int {
	raw := float64(players) * (float64(handSize) + float64(winTarget)/2) * 1.3 / 10
	return int(math.Ceil(raw)) * 10
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}

// cleanText trims and NFC-normalises free text, returning it only if its
// rune count falls within [1, max].
func cleanText(s string, max int) (string, bool) {
	s = strings.TrimSpace(norm.NFC.String(s))
	n := utf8.RuneCountInString(s)
	if n == 0 || n > max {
		return "", false
	}
	return s, true
}

func itoa(n int) string { return strconv.Itoa(n) }
