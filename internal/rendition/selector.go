// Package rendition exposes the selectable renditions of a playback session
// and lets callers enable or disable them individually.
package rendition

import (
	"log/slog"

	"github.com/agleyzer/renditionctl/internal/events"
	"github.com/agleyzer/renditionctl/internal/manifest"
	"github.com/agleyzer/renditionctl/internal/variant"
)

// Session is the playback session the selector works against.
// It owns the manifest and every variant record in it.
type Session interface {
	// Manifest returns the current manifest, nil if none is loaded yet.
	Manifest() *manifest.Manifest

	// IsAudioOnly reports whether the session plays m as audio only.
	IsAudioOnly(m *manifest.Manifest) bool

	// IsIncompatible reports whether v cannot be used by this session.
	IsIncompatible(v *variant.Variant) bool

	// IsEnabled reports whether v is enabled. Must agree with v.Disabled().
	IsEnabled(v *variant.Variant) bool

	// CodecsForVariant resolves the codec string of v within m.
	CodecsForVariant(m *manifest.Manifest, v *variant.Variant) string

	// AudioTrackPlaylists returns the playlists of the active audio track,
	// nil when there are none.
	AudioTrackPlaylists() []*variant.Variant

	// FastQualityChange switches playback to v immediately.
	// It only triggers the switch and must not block on its completion.
	FastQualityChange(v *variant.Variant)
}

// Emitter delivers rendition events to observers.
type Emitter interface {
	Emit(e events.Event)
}

// Recorder receives every persisted enabled-state change, including
// changes that produce no events. RecordDisabled is called while the
// variant is locked and must not block.
type Recorder interface {
	RecordDisabled(id string, disabled bool)
}

// Lister lists the selectable renditions.
type Lister interface {
	List() []Representation
}

// Selector lists representations of the session's compatible variants.
// It holds no state of its own besides the per-variant toggle locks.
type Selector struct {
	session  Session
	emitter  Emitter
	recorder Recorder
	locks    *keyedMutex
	logger   *slog.Logger
}

var _ Lister = (*Selector)(nil)

// Option configures a Selector.
type Option func(*Selector)

// WithRecorder forwards every enabled-state change to r.
func WithRecorder(r Recorder) Option {
	return func(s *Selector) {
		s.recorder = r
	}
}

// New creates a selector for session. Events are delivered to emitter.
func New(session Session, emitter Emitter, logger *slog.Logger, opts ...Option) *Selector {
	if emitter == nil {
		emitter = nopEmitter{}
	}

	s := &Selector{
		session: session,
		emitter: emitter,
		locks:   newKeyedMutex(),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns a representation for every compatible candidate variant,
// in manifest order. Audio-only sessions list the active audio track's
// playlists instead of the main variants. The result is a fresh snapshot
// and is empty, not nil, when nothing is available.
func (s *Selector) List() []Representation {
	m := s.session.Manifest()
	if m == nil {
		return []Representation{}
	}

	var candidates []*variant.Variant
	if s.session.IsAudioOnly(m) {
		candidates = s.session.AudioTrackPlaylists()
	} else {
		candidates = m.Playlists
	}

	if candidates == nil {
		return []Representation{}
	}

	reps := make([]Representation, 0, len(candidates))
	for _, v := range candidates {
		if s.session.IsIncompatible(v) {
			continue
		}
		reps = append(reps, s.build(m, v))
	}

	s.logger.Debug("listed renditions", "candidates", len(candidates), "listed", len(reps))
	return reps
}

// Get returns the representation of the variant with the given id,
// whether or not it is compatible.
func (s *Selector) Get(id string) (Representation, bool) {
	m := s.session.Manifest()
	if m == nil {
		return Representation{}, false
	}

	v, ok := m.Lookup(id)
	if !ok {
		return Representation{}, false
	}
	return s.build(m, v), true
}

// Toggle returns the enable toggle bound to the given variant id.
func (s *Selector) Toggle(id string) *Toggle {
	return &Toggle{
		variantID: id,
		session:   s.session,
		emitter:   s.emitter,
		recorder:  s.recorder,
		locks:     s.locks,
		logger:    s.logger,
	}
}

type nopEmitter struct{}

func (nopEmitter) Emit(events.Event) {}
