package events

import "testing"

type stubEvent string

func (s stubEvent) EventType() string { return string(s) }

func TestRecorderKeepsEmissionOrder(t *testing.T) {
	rec := &Recorder{}
	rec.Emit(stubEvent("tipping.season.created"))
	rec.Emit(nil)
	rec.Emit(stubEvent("tipping.quota.used"))

	got := rec.Types()
	if len(got) != 2 {
		t.Fatalf("recorded %d events, want 2", len(got))
	}
	if got[0] != "tipping.season.created" || got[1] != "tipping.quota.used" {
		t.Fatalf("order = %v", got)
	}
}

func TestNoopEmitterDiscards(t *testing.T) {
	var e Emitter = NoopEmitter{}
	e.Emit(stubEvent("anything"))
}
