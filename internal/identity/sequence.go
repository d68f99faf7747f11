package identity

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jensholdgaard/clubhub/internal/domainerr"
)

// Code letters.
const (
	PlayerLetter = 'P'
	CoachLetter  = 'C'
)

const maxCounter = 99999

// Sequencer is the store support needed to allocate codes.
type Sequencer interface {
	LockSequence(ctx context.Context, prefix string) error
	MaxCode(ctx context.Context, prefix string) (string, error)
}

// CodePrefix returns <letter><YY> for the year of now.
func CodePrefix(letter rune, now time.Time) string {
	return fmt.Sprintf("%c%02d", letter, now.Year()%100)
}

// NextCode allocates the next <letter><YY><00000> code. It must run inside
// the transaction that stores the code.
func NextCode(ctx context.Context, seq Sequencer, letter rune, now time.Time) (string, error) {
	prefix := CodePrefix(letter, now)
	if err := seq.LockSequence(ctx, prefix); err != nil {
		return "", fmt.Errorf("locking sequence %s: %w", prefix, err)
	}
	last, err := seq.MaxCode(ctx, prefix)
	if err != nil {
		return "", fmt.Errorf("reading sequence %s: %w", prefix, err)
	}

	next := 1
	if last != "" {
		n, err := strconv.Atoi(last[len(prefix):])
		if err != nil {
			return "", fmt.Errorf("parsing code %q: %w", last, err)
		}
		next = n + 1
	}
	if next > maxCounter {
		return "", domainerr.Exhausted("code_sequence_exhausted", "no %s codes left for this year", prefix).
			With("prefix", prefix)
	}
	return fmt.Sprintf("%s%05d", prefix, next), nil
}
