package events

import (
	"encoding/json"
	"testing"

	"github.com/agleyzer/renditionctl/internal/variant"
)

func TestBus_EmitOrder(t *testing.T) {
	bus := NewBus()

	var got []string
	bus.Subscribe(RenditionEnabled, func(Event) { got = append(got, "first") })
	bus.Subscribe(RenditionEnabled, func(Event) { got = append(got, "second") })
	bus.Subscribe(RenditionDisabled, func(Event) { got = append(got, "disabled") })

	bus.Emit(Event{Type: RenditionEnabled})

	if len(got) != 2 || got[0] != "first" || got[1] != "second" {
		t.Errorf("unexpected delivery order %v", got)
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()

	calls := 0
	unsubscribe := bus.Subscribe(RenditionDisabled, func(Event) { calls++ })
	other := 0
	bus.Subscribe(RenditionDisabled, func(Event) { other++ })

	bus.Emit(Event{Type: RenditionDisabled})
	unsubscribe()
	unsubscribe()
	bus.Emit(Event{Type: RenditionDisabled})

	if calls != 1 {
		t.Errorf("Expected 1 call before unsubscribe, got %d", calls)
	}
	if other != 2 {
		t.Errorf("Expected remaining subscriber to get 2 events, got %d", other)
	}
}

func TestBus_HandlerMayEmit(t *testing.T) {
	bus := NewBus()

	disabled := 0
	bus.Subscribe(RenditionEnabled, func(Event) {
		bus.Emit(Event{Type: RenditionDisabled})
	})
	bus.Subscribe(RenditionDisabled, func(Event) { disabled++ })

	bus.Emit(Event{Type: RenditionEnabled})

	if disabled != 1 {
		t.Errorf("Expected nested emit to be delivered once, got %d", disabled)
	}
}

func TestEvent_JSON(t *testing.T) {
	e := Event{
		Type: RenditionEnabled,
		Metadata: Metadata{
			RenditionInfo: RenditionInfo{
				ID:         "0-low.m3u8",
				Bandwidth:  variant.IntPtr(800000),
				Resolution: &variant.Resolution{Width: 640, Height: 360},
				Codecs:     "avc1.4d401e,mp4a.40.2",
			},
			Cause: CauseFastQuality,
		},
	}

	data, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("Marshal error = %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal error = %v", err)
	}

	if decoded["type"] != "renditionenabled" {
		t.Errorf("type = %v", decoded["type"])
	}
	meta := decoded["metadata"].(map[string]any)
	if meta["cause"] != "fast-quality" {
		t.Errorf("cause = %v", meta["cause"])
	}
	info := meta["renditionInfo"].(map[string]any)
	if info["id"] != "0-low.m3u8" {
		t.Errorf("id = %v", info["id"])
	}
	if info["bandwidth"].(float64) != 800000 {
		t.Errorf("bandwidth = %v", info["bandwidth"])
	}
}
