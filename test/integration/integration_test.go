package integration

import (
	"strings"
	"testing"

	"github.com/grafov/m3u8"

	"github.com/agleyzer/renditionctl/internal/config"
)

const masterWithAudio = `#EXTM3U
#EXT-X-VERSION:4
#EXT-X-MEDIA:TYPE=AUDIO,GROUP-ID="aac",NAME="English",LANGUAGE="en",DEFAULT=YES,AUTOSELECT=YES,URI="audio/en.m3u8"
#EXT-X-MEDIA:TYPE=AUDIO,GROUP-ID="aac",NAME="Deutsch",LANGUAGE="de",DEFAULT=NO,AUTOSELECT=YES,URI="audio/de.m3u8"
#EXT-X-STREAM-INF:BANDWIDTH=800000,RESOLUTION=640x360,CODECS="avc1.4d401e",AUDIO="aac"
video/low.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=2500000,RESOLUTION=1280x720,FRAME-RATE=29.970,CODECS="avc1.4d401f",AUDIO="aac"
video/mid.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=4000000,RESOLUTION=1920x1080,CODECS="hvc1.1.6.L120.90",AUDIO="aac"
video/hevc.m3u8
`

const audioOnlyMaster = `#EXTM3U
#EXT-X-VERSION:4
#EXT-X-STREAM-INF:BANDWIDTH=64000,CODECS="mp4a.40.5"
audio/64k.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=128000,CODECS="mp4a.40.2"
audio/128k.m3u8
`

const mediaPlaylist = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:10
#EXTINF:10.0,
segment0.ts
#EXTINF:10.0,
segment1.ts
#EXT-X-ENDLIST
`

// TestMasterPlaylist walks a node through listing, toggling and serving
// the filtered master playlist.
func TestMasterPlaylist(t *testing.T) {
	harness := NewTestHarness(t)
	harness.StartOrigin(map[string]string{"/master.m3u8": masterWithAudio})
	node := harness.StartNode("/master.m3u8", nil)

	reps := harness.Renditions(node)
	if len(reps) != 2 {
		t.Fatalf("expected 2 compatible renditions, got %d", len(reps))
	}
	for _, rep := range reps {
		if !strings.HasSuffix(rep.Codecs, "mp4a.40.2") {
			t.Errorf("rendition %s should get the default audio codec, got %s", rep.ID, rep.Codecs)
		}
		if !strings.HasPrefix(rep.URI, harness.ManifestURL("/video/")) {
			t.Errorf("rendition %s URI should be absolute, got %s", rep.ID, rep.URI)
		}
	}

	harness.SetEnabled(node, "0-video/low.m3u8", false)

	body := harness.FetchMaster(node)
	playlist, listType, err := m3u8.DecodeFrom(strings.NewReader(body), true)
	if err != nil {
		t.Fatalf("served master playlist does not decode: %v\n%s", err, body)
	}
	if listType != m3u8.MASTER {
		t.Fatalf("expected master playlist, got %v", listType)
	}

	master := playlist.(*m3u8.MasterPlaylist)
	if len(master.Variants) != 1 {
		t.Fatalf("expected 1 variant, got %d:\n%s", len(master.Variants), body)
	}

	v := master.Variants[0]
	if !strings.HasSuffix(v.URI, "video/mid.m3u8") {
		t.Errorf("unexpected variant %s", v.URI)
	}
	if v.Resolution != "1280x720" || v.Bandwidth != 2500000 {
		t.Errorf("unexpected variant params %+v", v.VariantParams)
	}
	if v.Audio != "aac" || len(v.Alternatives) != 2 {
		t.Errorf("variant should keep its audio group, got %q with %d alternatives", v.Audio, len(v.Alternatives))
	}

	harness.SetEnabled(node, "0-video/low.m3u8", true)
	if current := node.App.Session.Current(); current == nil || current.ID != "0-video/low.m3u8" {
		t.Errorf("enabling should switch to the rendition, got %v", current)
	}
}

// TestAudioOnlyManifest lists the audio playlists of an audio-only master.
func TestAudioOnlyManifest(t *testing.T) {
	harness := NewTestHarness(t)
	harness.StartOrigin(map[string]string{"/audio.m3u8": audioOnlyMaster})
	node := harness.StartNode("/audio.m3u8", nil)

	reps := harness.Renditions(node)
	if len(reps) != 2 {
		t.Fatalf("expected 2 audio renditions, got %d", len(reps))
	}
	if reps[0].Codecs != "mp4a.40.5" {
		t.Errorf("unexpected codecs %s", reps[0].Codecs)
	}
}

// TestMediaPlaylist treats a bare media playlist as a single rendition.
func TestMediaPlaylist(t *testing.T) {
	harness := NewTestHarness(t)
	harness.StartOrigin(map[string]string{"/media.m3u8": mediaPlaylist})
	node := harness.StartNode("/media.m3u8", func(cfg *config.Config) {
		cfg.Disable = []string{"0-" + harness.ManifestURL("/media.m3u8")}
	})

	reps := harness.Renditions(node)
	if len(reps) != 1 {
		t.Fatalf("expected 1 rendition, got %d", len(reps))
	}
	if reps[0].Enabled {
		t.Error("rendition from the disable list should start disabled")
	}
	if reps[0].Codecs != "avc1.4d400d,mp4a.40.2" {
		t.Errorf("expected default codecs, got %s", reps[0].Codecs)
	}
}

// TestCodecSupport makes an otherwise incompatible rendition selectable.
func TestCodecSupport(t *testing.T) {
	harness := NewTestHarness(t)
	harness.StartOrigin(map[string]string{"/master.m3u8": masterWithAudio})
	node := harness.StartNode("/master.m3u8", func(cfg *config.Config) {
		cfg.Codecs = []string{"avc1", "hvc1", "mp4a"}
	})

	if reps := harness.Renditions(node); len(reps) != 3 {
		t.Errorf("expected 3 renditions with hvc1 support, got %d", len(reps))
	}
}
