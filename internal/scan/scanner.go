// Package scan turns composer snapshots into drafts, coalescing bursts of changes.
package scan

import (
	"sync"
	"time"

	"github.com/blacktop/multipost/internal/logutil"
	"github.com/blacktop/multipost/internal/multipost"
)

// Snapshot is what a composer exposes at a point in time. A nil Text means
// the text element is not on the page yet.
type Snapshot struct {
	Text        *string
	ImageURLs   []string
	CardPresent bool
	// CardDomain is nil when the card is shown but its domain element is missing.
	CardDomain *string
}

// Source reads the composer.
type Source interface {
	Snapshot() (Snapshot, error)
}

// BuildDraft converts a snapshot into a draft. It returns nil when there is no
// text element. A card without a domain degrades to an empty domain.
func BuildDraft(snap Snapshot) *multipost.Draft {
	if snap.Text == nil {
		return nil
	}
	draft := &multipost.Draft{
		Text:      *snap.Text,
		ImageURLs: append([]string{}, snap.ImageURLs...),
	}
	if snap.CardPresent {
		if snap.CardDomain == nil {
			logutil.Warnf("%v", multipost.ScrapeElementMissingError{Element: "card domain"})
		} else {
			draft.LinkDomain = *snap.CardDomain
		}
	}
	return draft
}

// Scanner recomputes the draft after the composer settles.
type Scanner struct {
	source   Source
	debounce *Debouncer
	onDraft  func(*multipost.Draft)

	mu    sync.RWMutex
	draft *multipost.Draft
}

// NewScanner returns a scanner reading source. onDraft, if set, receives every
// recomputed draft.
func NewScanner(source Source, window time.Duration, onDraft func(*multipost.Draft)) *Scanner {
	return &Scanner{
		source:   source,
		debounce: NewDebouncer(window),
		onDraft:  onDraft,
	}
}

// Notify records that the composer changed.
func (s *Scanner) Notify() {
	s.debounce.Trigger(s.recompute)
}

// Draft returns the latest draft, or nil.
func (s *Scanner) Draft() *multipost.Draft {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.draft
}

// Close stops pending recomputations.
func (s *Scanner) Close() {
	s.debounce.Close()
}

func (s *Scanner) recompute() {
	snap, err := s.source.Snapshot()
	if err != nil {
		logutil.Warnf("scan composer: %v", err)
		return
	}
	draft := BuildDraft(snap)
	if draft == nil {
		return
	}

	s.mu.Lock()
	s.draft = draft
	s.mu.Unlock()

	if s.onDraft != nil {
		s.onDraft(draft)
	}
}
