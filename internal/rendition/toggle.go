package rendition

import (
	"log/slog"
	"sync"

	"github.com/agleyzer/renditionctl/internal/events"
	"github.com/agleyzer/renditionctl/internal/variant"
)

// Toggle reads and changes the enabled state of a single variant.
// The variant is looked up by id on every call, so a toggle never
// caches state and stays valid across listings.
type Toggle struct {
	variantID string
	session   Session
	emitter   Emitter
	recorder  Recorder
	locks     *keyedMutex
	logger    *slog.Logger
}

// Enabled reports whether the variant is currently enabled.
// An id no longer present in the manifest reports false.
func (t *Toggle) Enabled() bool {
	v := t.lookup()
	if v == nil {
		return false
	}
	return t.session.IsEnabled(v)
}

// SetEnabled records the requested state and returns enable.
//
// The disabled flag is always updated, even for incompatible variants.
// A quality change and an event only follow a real transition of a
// compatible variant: enabling switches playback to the variant and then
// emits renditionenabled, disabling emits renditiondisabled.
//
// The whole sequence runs under the variant's lock, so the recorder and
// observers see transitions of one variant in the order they were made.
// Observers must not toggle the same variant from an event handler.
func (t *Toggle) SetEnabled(enable bool) bool {
	unlock := t.locks.Lock(t.variantID)
	defer unlock()

	v := t.lookup()
	if v == nil {
		t.logger.Warn("toggle of unknown rendition ignored", "rendition", t.variantID, "enable", enable)
		return enable
	}

	incompatible := t.session.IsIncompatible(v)
	wasEnabled := t.session.IsEnabled(v)
	v.SetDisabled(!enable)

	if t.recorder != nil {
		t.recorder.RecordDisabled(v.ID, !enable)
	}

	if enable == wasEnabled || incompatible {
		t.logger.Debug("rendition state recorded",
			"rendition", v.ID,
			"enabled", enable,
			"incompatible", incompatible,
		)
		return enable
	}

	event := events.Event{
		Type: events.RenditionDisabled,
		Metadata: events.Metadata{
			RenditionInfo: renditionInfo(v),
			Cause:         events.CauseFastQuality,
		},
	}

	if enable {
		t.session.FastQualityChange(v)
		event.Type = events.RenditionEnabled
	}

	t.logger.Info("rendition changed", "rendition", v.ID, "event", event.Type)
	t.emitter.Emit(event)

	return enable
}

func (t *Toggle) lookup() *variant.Variant {
	m := t.session.Manifest()
	if m == nil {
		return nil
	}
	v, _ := m.Lookup(t.variantID)
	return v
}

func renditionInfo(v *variant.Variant) events.RenditionInfo {
	info := events.RenditionInfo{ID: v.ID}
	if attrs := v.Attributes; attrs != nil {
		if attrs.Bandwidth != nil {
			info.Bandwidth = variant.IntPtr(*attrs.Bandwidth)
		}
		if attrs.Resolution != nil {
			res := *attrs.Resolution
			info.Resolution = &res
		}
		info.Codecs = attrs.Codecs
	}
	return info
}

// keyedMutex serializes toggles per variant id.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

// Lock locks key and returns the matching unlock function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}
