package ingest

import (
	"testing"

	"github.com/google/uuid"

	"raidguard/internal/model"
)

func TestParseTriggerKeyword(t *testing.T) {
	p := NewParser()
	actor := uuid.NewString()
	ev, err := p.ParseLine("TRIGGER " + actor)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if ev.ActorID != actor {
		t.Fatalf("actor id: %s", ev.ActorID)
	}
}

func TestParseBareUUID(t *testing.T) {
	p := NewParser()
	actor := uuid.NewString()
	ev, err := p.ParseLine(actor)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if ev.ActorID != actor {
		t.Fatalf("actor id: %s", ev.ActorID)
	}
}

func TestParseJSON(t *testing.T) {
	p := NewParser()
	line := `{"event_id":"ev-1","player":"5f8b7a2c-1d4e-4f6a-9b3c-8e7d6c5b4a39"}`
	ev, err := p.ParseLine(line)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if ev.ActorID != "5f8b7a2c-1d4e-4f6a-9b3c-8e7d6c5b4a39" {
		t.Fatalf("actor id: %s", ev.ActorID)
	}
	if ev.EventID != "ev-1" {
		t.Fatalf("event id: %s", ev.EventID)
	}
}

func TestParseBlankLine(t *testing.T) {
	p := NewParser()
	ev, err := p.ParseLine("   ")
	if err != nil || ev != nil {
		t.Fatalf("blank line should be skipped, got %v %v", ev, err)
	}
}

func TestParseGarbage(t *testing.T) {
	p := NewParser()
	if _, err := p.ParseLine("START raid now please"); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := p.ParseLine(`{"result":"ok"}`); err == nil {
		t.Fatalf("expected missing actor id error")
	}
}

type fakeGate struct {
	lastActor  uuid.UUID
	lastBypass bool
	bypassed   map[uuid.UUID]bool
}

func (g *fakeGate) IsBypassed(actor uuid.UUID) bool {
	return g.bypassed[actor]
}

func (g *fakeGate) TryReserve(actor uuid.UUID, bypass bool, source string) model.Decision {
	g.lastActor = actor
	g.lastBypass = bypass
	verdict := model.VerdictAllowed
	if bypass {
		verdict = model.VerdictBypassed
	}
	return model.Decision{ActorID: actor, Verdict: verdict, Source: source}
}

func TestResolvePassesBypassFlag(t *testing.T) {
	actor := uuid.New()
	gate := &fakeGate{bypassed: map[uuid.UUID]bool{actor: true}}
	d, err := Resolve(gate, model.TriggerEvent{ActorID: actor.String(), Source: "test"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !gate.lastBypass || d.Verdict != model.VerdictBypassed {
		t.Fatalf("bypass flag not propagated: %+v", d)
	}
}

func TestResolveRejectsInvalidActor(t *testing.T) {
	gate := &fakeGate{}
	if _, err := Resolve(gate, model.TriggerEvent{ActorID: "steve"}); err == nil {
		t.Fatalf("expected invalid actor error")
	}
}
