package runner

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/agente-films/moviepitch/internal/agents"
	"github.com/agente-films/moviepitch/internal/session"
)

type staticRouter struct{}

func (staticRouter) ModelFor(string) string { return "test-model" }

// fakeGateway returns "<agent> ok" per call unless the rendered input
// matches a configured failure trigger.
type fakeGateway struct {
	failOn map[string]error // instruction substring -> error
	calls  []string
}

func (g *fakeGateway) Complete(_ context.Context, _ string, instruction string, input string) (string, error) {
	g.calls = append(g.calls, input)
	for marker, err := range g.failOn {
		if strings.Contains(instruction, marker) {
			return "", err
		}
	}
	return agentFor(instruction) + " ok", nil
}

// agentFor maps a persona instruction back to its role name for assertions.
func agentFor(instruction string) string {
	switch {
	case strings.Contains(instruction, "welcoming agent"):
		return "greeter"
	case strings.Contains(instruction, "expert researcher"):
		return "researcher"
	case strings.Contains(instruction, "expert screenwriter"):
		return "screenwriter"
	case strings.Contains(instruction, "story critic"):
		return "critic"
	}
	return "unknown"
}

type fakeLog struct {
	questions []string
	answers   []string
	snapshots int
	failAll   bool
}

func (l *fakeLog) SaveQuestion(_ context.Context, _, text, _ string) (string, error) {
	if l.failAll {
		return "", errors.New("db down")
	}
	l.questions = append(l.questions, text)
	return "q-1", nil
}

func (l *fakeLog) SaveAnswer(_ context.Context, _, _, text, _ string) (string, error) {
	if l.failAll {
		return "", errors.New("db down")
	}
	l.answers = append(l.answers, text)
	return "a-1", nil
}

func (l *fakeLog) SaveStateSnapshot(_ context.Context, _ string, _ map[string]interface{}) error {
	if l.failAll {
		return errors.New("db down")
	}
	l.snapshots++
	return nil
}

func newRunner(t *testing.T, gw CompletionGateway, plog PersistenceLog) *Runner {
	t.Helper()
	return &Runner{
		SessionID: "abc",
		Cache:     session.NewCache(),
		Registry:  agents.NewRegistry(staticRouter{}),
		Gateway:   gw,
		Log:       plog,
	}
}

func TestRunHappyPath(t *testing.T) {
	gw := &fakeGateway{}
	plog := &fakeLog{}
	r := newRunner(t, gw, plog)

	tr, err := r.Run(context.Background(), "Tell a story about Ada Lovelace", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(tr.Trace) != 4 {
		t.Fatalf("expected 4 trace entries, got %d", len(tr.Trace))
	}
	wantOrder := []string{"greeter", "researcher", "screenwriter", "critic"}
	for i, agent := range wantOrder {
		if tr.Trace[i].Agent != agent {
			t.Fatalf("trace[%d].Agent = %s, want %s", i, tr.Trace[i].Agent, agent)
		}
		if tr.Trace[i].Status != StatusCompleted {
			t.Fatalf("trace[%d].Status = %s", i, tr.Trace[i].Status)
		}
	}

	if !strings.Contains(tr.FinalText, "screenwriter ok") {
		t.Fatalf("final text missing screenwriter output: %q", tr.FinalText)
	}
	if !strings.Contains(tr.FinalText, "critic ok") {
		t.Fatalf("final text missing critic output: %q", tr.FinalText)
	}
}

func TestRunPersistenceCallCounts(t *testing.T) {
	gw := &fakeGateway{}
	plog := &fakeLog{}
	r := newRunner(t, gw, plog)

	if _, err := r.Run(context.Background(), "x", nil); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(plog.questions) != 1 {
		t.Fatalf("expected 1 saved question, got %d", len(plog.questions))
	}
	if len(plog.answers) != 1 {
		t.Fatalf("expected 1 saved answer, got %d", len(plog.answers))
	}
	if plog.snapshots != 1 {
		t.Fatalf("expected 1 state snapshot, got %d", plog.snapshots)
	}
}

func TestRunContinuesAfterResearcherFailure(t *testing.T) {
	gw := &fakeGateway{failOn: map[string]error{"expert researcher": errors.New("gateway timeout")}}
	plog := &fakeLog{}
	r := newRunner(t, gw, plog)

	tr, err := r.Run(context.Background(), "x", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(tr.Trace) != 4 {
		t.Fatalf("expected 4 trace entries, got %d", len(tr.Trace))
	}
	if tr.Trace[1].Status != StatusError {
		t.Fatalf("researcher status = %s, want error", tr.Trace[1].Status)
	}
	if !strings.Contains(tr.Trace[1].Text, "gateway timeout") {
		t.Fatalf("researcher error text: %q", tr.Trace[1].Text)
	}
	// screenwriter runs against the error placeholder and still succeeds
	if tr.Trace[2].Status != StatusCompleted {
		t.Fatalf("screenwriter status = %s", tr.Trace[2].Status)
	}
	if tr.Trace[3].Status != StatusCompleted {
		t.Fatalf("critic status = %s", tr.Trace[3].Status)
	}
}

func TestRunContinuesAfterScreenwriterFailure(t *testing.T) {
	gw := &fakeGateway{failOn: map[string]error{"expert screenwriter": errors.New("boom")}}
	plog := &fakeLog{}
	r := newRunner(t, gw, plog)

	tr, err := r.Run(context.Background(), "x", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if tr.Trace[2].Status != StatusError {
		t.Fatalf("screenwriter status = %s, want error", tr.Trace[2].Status)
	}
	// critic still executes, fed by the error placeholder
	if tr.Trace[3].Agent != "critic" || tr.Trace[3].Status != StatusCompleted {
		t.Fatalf("critic entry = %+v", tr.Trace[3])
	}
}

func TestRunSurvivesPersistenceFailure(t *testing.T) {
	gw := &fakeGateway{}
	plog := &fakeLog{failAll: true}
	r := newRunner(t, gw, plog)

	tr, err := r.Run(context.Background(), "x", nil)
	if err != nil {
		t.Fatalf("Run should absorb persistence failures, got %v", err)
	}
	if len(tr.Trace) != 4 {
		t.Fatalf("expected full trace, got %d entries", len(tr.Trace))
	}
}

func TestRunnerStateCarriesAcrossRuns(t *testing.T) {
	gw := &fakeGateway{}
	plog := &fakeLog{}
	cache := session.NewCache()
	r := &Runner{SessionID: "abc", Cache: cache, Registry: agents.NewRegistry(staticRouter{}), Gateway: gw, Log: plog}

	if _, err := r.Run(context.Background(), "first", nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	rec, err := cache.GetOrCreate("abc")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if got, ok := rec.Get(agents.KeyResearch); !ok || got != "researcher ok" {
		t.Fatalf("research state not visible through cache: %q ok=%v", got, ok)
	}

	// second run reuses the same record instance
	if _, err := r.Run(context.Background(), "second", nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	again, _ := cache.GetOrCreate("abc")
	if rec != again {
		t.Fatal("record identity changed between runs")
	}
}

func TestRunStreamsObserverEvents(t *testing.T) {
	gw := &fakeGateway{}
	plog := &fakeLog{}
	r := newRunner(t, gw, plog)

	var events []Step
	_, err := r.Run(context.Background(), "x", func(s Step) { events = append(events, s) })
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// one starting plus one terminal event per step
	if len(events) != 8 {
		t.Fatalf("expected 8 streamed events, got %d", len(events))
	}
	if events[0].Status != StatusStarting || events[1].Status != StatusCompleted {
		t.Fatalf("unexpected event order: %+v %+v", events[0], events[1])
	}
}

func TestInitializeIdempotent(t *testing.T) {
	r := newRunner(t, &fakeGateway{}, &fakeLog{})
	if err := r.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	first := r.rec
	if err := r.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if r.rec != first {
		t.Fatal("Initialize must be a no-op once bound")
	}
}
