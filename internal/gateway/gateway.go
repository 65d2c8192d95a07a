// Package gateway delivers run notifications to chat services and accepts
// goals from them.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rahul/sentinel/internal/agent"
)

// Messenger sends text to a pre-configured destination.
type Messenger interface {
	Name() string
	Send(ctx context.Context, text string) error
}

// GoalRunner is what chat goals are handed to; pass a RunGate-guarded
// orchestrator so chat runs never overlap a review.
type GoalRunner = agent.GoalRunner

// Broadcast fans a notification out to every messenger.
type Broadcast []Messenger

func (b Broadcast) Notify(ctx context.Context, message string) error {
	var errs []error
	for _, m := range b {
		if err := m.Send(ctx, message); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", m.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// splitMessage cuts text into pieces of at most limit bytes, preferring line
// breaks and never splitting a UTF-8 sequence.
func splitMessage(text string, limit int) []string {
	if limit <= 0 || len(text) <= limit {
		return []string{text}
	}

	var parts []string
	for len(text) > limit {
		cut := strings.LastIndex(text[:limit], "\n")
		if cut <= 0 {
			cut = limit
			for cut > 0 && !isRuneStart(text[cut]) {
				cut--
			}
			if cut == 0 {
				cut = limit
			}
		}
		parts = append(parts, text[:cut])
		text = strings.TrimPrefix(text[cut:], "\n")
	}
	if text != "" {
		parts = append(parts, text)
	}
	return parts
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
