package exam

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mcdev12/osce/go/internal/announce"
	"github.com/mcdev12/osce/go/internal/config"
	"github.com/mcdev12/osce/go/internal/stations"
	"github.com/mcdev12/osce/go/internal/store"
)

func newTestService(t *testing.T, st store.Store) *Service {
	t.Helper()
	r, _ := startRunner(t, st)
	return NewService(r, st, stations.NewSet(), announce.NewCues(announce.LogAnnouncer{}))
}

func TestServiceStartExamUsesSettings(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, store.NewMemory())

	cfg := svc.Settings()
	cfg.NumCandidates = 3
	cfg.ReadSeconds = 0
	cfg.Stations = stations.Export{Stations: testStations(), NextID: 3}
	if err := svc.ApplySettings(cfg); err != nil {
		t.Fatalf("ApplySettings: %v", err)
	}
	if err := svc.StartExam(ctx); err != nil {
		t.Fatalf("StartExam: %v", err)
	}

	v, err := svc.Runner().View(ctx)
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if len(v.Candidates) != 3 || v.TotalRounds != 3 || v.Phase != "activity" {
		t.Fatalf("view = %+v", v)
	}
	if len(v.Stations) != 2 {
		t.Fatalf("exam stations = %d, want 2", len(v.Stations))
	}
}

func TestServiceApplySettingsIsAllOrNothing(t *testing.T) {
	svc := newTestService(t, store.NewMemory())
	before := svc.Settings()

	bad := svc.Settings()
	bad.NumCandidates = 9
	bad.Stations.Stations[0].ActivityMinutes = 0
	if err := svc.ApplySettings(bad); !errors.Is(err, stations.ErrInvalidExport) {
		t.Fatalf("err = %v, want ErrInvalidExport", err)
	}
	if diff := cmp.Diff(before, svc.Settings()); diff != "" {
		t.Fatalf("settings changed after rejected apply (-want +got):\n%s", diff)
	}

	bad = svc.Settings()
	bad.NumCandidates = 0
	if err := svc.ApplySettings(bad); !errors.Is(err, config.ErrInvalidSettings) {
		t.Fatalf("err = %v, want ErrInvalidSettings", err)
	}
}

func TestServiceSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	svc := newTestService(t, st)

	if _, err := svc.AddStation("Suturing", 7, 3); err != nil {
		t.Fatalf("AddStation: %v", err)
	}
	cfg := svc.Settings()
	cfg.NumCandidates = 6
	cfg.Announcements[announce.KeyReadStart] = "Read the card."
	if err := svc.ApplySettings(cfg); err != nil {
		t.Fatalf("ApplySettings: %v", err)
	}
	if err := svc.SaveSettings(ctx); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}

	fresh := NewService(svc.Runner(), st, stations.NewSet(), nil)
	if err := fresh.LoadSaved(ctx); err != nil {
		t.Fatalf("LoadSaved: %v", err)
	}
	if diff := cmp.Diff(svc.Settings(), fresh.Settings()); diff != "" {
		t.Fatalf("loaded settings mismatch (-want +got):\n%s", diff)
	}
}

func TestServiceLoadSavedWithoutSettings(t *testing.T) {
	svc := newTestService(t, store.NewMemory())
	if err := svc.LoadSaved(context.Background()); err != nil {
		t.Fatalf("LoadSaved: %v", err)
	}
	if got := len(svc.Stations()); got != 5 {
		t.Fatalf("stations = %d, want defaults", got)
	}
}

func TestServiceImportExport(t *testing.T) {
	svc := newTestService(t, store.NewMemory())

	doc := []byte("num_candidates: 4\nstations:\n  next_id: 3\n  stations:\n    - id: 1\n      name: A\n      activity_minutes: 5\n      feedback_minutes: 2\n    - id: 2\n      name: B\n      activity_minutes: 6\n      feedback_minutes: 2\n")
	if err := svc.ImportSettings(doc, config.FormatYAML); err != nil {
		t.Fatalf("ImportSettings: %v", err)
	}
	if got := svc.Settings(); got.NumCandidates != 4 || len(got.Stations.Stations) != 2 {
		t.Fatalf("settings after import = %+v", got)
	}

	out, err := svc.ExportSettings(config.FormatJSON)
	if err != nil {
		t.Fatalf("ExportSettings: %v", err)
	}
	back, err := config.Parse(out, config.FormatJSON)
	if err != nil {
		t.Fatalf("Parse exported: %v", err)
	}
	if diff := cmp.Diff(svc.Settings(), back); diff != "" {
		t.Fatalf("export mismatch (-want +got):\n%s", diff)
	}
}

func TestServiceVoiceHandlers(t *testing.T) {
	svc := newTestService(t, store.NewMemory())
	var got []announce.VoiceSettings
	svc.OnVoiceChange(func(v announce.VoiceSettings) { got = append(got, v) })

	cfg := svc.Settings()
	cfg.Voice.Rate = 1.2
	if err := svc.ApplySettings(cfg); err != nil {
		t.Fatalf("ApplySettings: %v", err)
	}
	want := []announce.VoiceSettings{announce.DefaultVoice(), cfg.Voice}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("voice updates (-want +got):\n%s", diff)
	}
}
