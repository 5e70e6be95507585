package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestLevelScopes(t *testing.T) {
	tests := []struct {
		level Level
		scope Scope
		want  bool
	}{
		{LevelOff, ScopeDriver, false},
		{LevelError, ScopeDriver, false},
		{LevelPhase, ScopePass, true},
		{LevelPhase, ScopeModule, false},
		{LevelDetail, ScopeModule, true},
		{LevelDetail, ScopeQuery, false},
		{LevelDebug, ScopeQuery, true},
	}
	for _, tt := range tests {
		if got := tt.level.ShouldEmit(tt.scope); got != tt.want {
			t.Errorf("%s.ShouldEmit(%s) = %v, want %v", tt.level, tt.scope, got, tt.want)
		}
	}
}

func TestStreamNDJSON(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelDetail, FormatNDJSON)
	span := Begin(tr, ScopeModule, "module:a.thrift", 0)
	span.WithExtra("decls", "3").End("ok")
	Begin(tr, ScopeQuery, "skipped", 0).End("")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}
	var end struct {
		Kind   string            `json:"kind"`
		Scope  string            `json:"scope"`
		Name   string            `json:"name"`
		Detail string            `json:"detail"`
		Extra  map[string]string `json:"extra"`
	}
	if err := json.Unmarshal([]byte(lines[1]), &end); err != nil {
		t.Fatal(err)
	}
	if end.Kind != "end" || end.Scope != "module" || end.Detail != "ok" || end.Extra["decls"] != "3" {
		t.Errorf("end event = %+v", end)
	}
}

func TestTextFormatSortsExtra(t *testing.T) {
	ev := &Event{Kind: KindPoint, Scope: ScopePass, Name: "emit", Extra: map[string]string{"b": "2", "a": "1"}}
	got := string(FormatEvent(ev, FormatText))
	if !strings.Contains(got, "pass:emit {a=1, b=2}") {
		t.Errorf("text = %q", got)
	}
}

func TestRingWraps(t *testing.T) {
	r := NewRingTracer(3, LevelDebug)
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		r.Emit(&Event{Kind: KindPoint, Scope: ScopePass, Name: name})
	}
	snap := r.Snapshot()
	if len(snap) != 3 || snap[0].Name != "c" || snap[2].Name != "e" {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestLogTracer(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.DebugLevel)
	tr, err := New(Config{Level: LevelPhase, Mode: ModeRing, Logger: &log})
	if err != nil {
		t.Fatal(err)
	}
	Begin(tr, ScopePass, "resolve", 0).End("2 modules")
	if Ring(tr) == nil || len(Ring(tr).Snapshot()) != 2 {
		t.Fatal("ring sink missing events")
	}
	out := buf.String()
	if !strings.Contains(out, `"message":"resolve"`) || !strings.Contains(out, `"detail":"2 modules"`) {
		t.Errorf("log output = %s", out)
	}
}

func TestContextPropagation(t *testing.T) {
	if FromContext(context.Background()) != Nop {
		t.Fatal("empty context must yield Nop")
	}
	r := NewRingTracer(4, LevelDebug)
	ctx := WithTracer(context.Background(), r)
	if FromContext(ctx) != Tracer(r) {
		t.Fatal("tracer not propagated")
	}
	ctx = WithSpanContext(ctx, SpanContext{SpanID: 7})
	if CurrentSpan(ctx).SpanID != 7 {
		t.Fatal("span context not propagated")
	}
}

func TestOffIsNop(t *testing.T) {
	tr, err := New(Config{Level: LevelOff})
	if err != nil || tr.Enabled() {
		t.Fatalf("tracer = %v, %v", tr, err)
	}
	if Begin(tr, ScopeDriver, "x", 0).ID() != 0 {
		t.Error("disabled span must have no id")
	}
}
