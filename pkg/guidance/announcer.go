package guidance

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/menta2k/composition-guide/pkg/composition"
)

// Speaker is the speech synthesizer contract.
// flush asks the synthesizer to drop any utterance still in progress.
type Speaker interface {
	Speak(ctx context.Context, text string, flush bool) error
}

// Announcement describes what happened to one guidance category
type Announcement struct {
	Category composition.Category `json:"category"`
	Message  string               `json:"message"`
	Spoken   bool                 `json:"spoken"`
}

// Announcer renders categories to text and forwards them to a Speaker
// through a Gate.
type Announcer struct {
	gate    *Gate
	speaker Speaker
	locale  string
}

// NewAnnouncer creates an Announcer. A nil speaker makes every
// announcement text-only.
func NewAnnouncer(gate *Gate, speaker Speaker, locale string) *Announcer {
	if !composition.HasLocale(locale) {
		locale = composition.DefaultLocale
	}
	return &Announcer{gate: gate, speaker: speaker, locale: locale}
}

// Gate returns the gate guarding speech output
func (a *Announcer) Gate() *Gate {
	return a.gate
}

// Locale returns the locale messages are rendered in
func (a *Announcer) Locale() string {
	return a.locale
}

// Announce renders category and speaks it if the gate allows
func (a *Announcer) Announce(ctx context.Context, now time.Time, category composition.Category) (Announcement, error) {
	ann := Announcement{Category: category}
	if category == composition.Unknown {
		return ann, nil
	}
	ann.Message = composition.Message(a.locale, category)
	if ann.Message == "" || a.speaker == nil {
		return ann, nil
	}
	if !a.gate.ShouldEmit(now) {
		return ann, nil
	}

	if err := a.speaker.Speak(ctx, ann.Message, true); err != nil {
		return ann, fmt.Errorf("speak guidance: %w", err)
	}
	ann.Spoken = true
	return ann, nil
}

// LogSpeaker writes utterances to a logger instead of synthesizing audio
type LogSpeaker struct {
	logger *log.Logger
}

// NewLogSpeaker creates a LogSpeaker; a nil logger uses the standard logger
func NewLogSpeaker(logger *log.Logger) *LogSpeaker {
	if logger == nil {
		logger = log.Default()
	}
	return &LogSpeaker{logger: logger}
}

// Speak implements Speaker
func (s *LogSpeaker) Speak(ctx context.Context, text string, flush bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if flush {
		s.logger.Printf("say (flush): %s", text)
	} else {
		s.logger.Printf("say: %s", text)
	}
	return nil
}
