package runner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/agente-films/moviepitch/internal/agents"
	"github.com/agente-films/moviepitch/internal/session"
	"github.com/agente-films/moviepitch/internal/telemetry"
)

// Step statuses as they appear in traces and streamed thought events.
const (
	StatusStarting  = "starting"
	StatusCompleted = "completed"
	StatusError     = "error"
)

// ErrSessionResolution marks a run that failed before any step because the
// session record could not be created or located. It is the only gateway
// to a caller-visible run error besides a rendering defect.
var ErrSessionResolution = errors.New("session cannot be resolved")

// Step is one agent execution summary within a run's trace.
type Step struct {
	Agent  string `json:"agent"`
	Text   string `json:"text"`
	Status string `json:"status"`
}

// Transcript is the externally visible output of one run.
type Transcript struct {
	FinalText string `json:"final_text"`
	Trace     []Step `json:"trace"`
}

// Observer receives step events as they happen, including the transient
// "starting" events that never land in the final trace. Used by the
// websocket channel to stream progress.
type Observer func(Step)

// CompletionGateway is the LLM call boundary: prompt in, text out.
type CompletionGateway interface {
	Complete(ctx context.Context, model string, instruction string, input string) (string, error)
}

// PersistenceLog records questions, answers, and state snapshots.
type PersistenceLog interface {
	SaveQuestion(ctx context.Context, sessionID, questionText, agentName string) (string, error)
	SaveAnswer(ctx context.Context, sessionID, agentName, answerText, questionID string) (string, error)
	SaveStateSnapshot(ctx context.Context, sessionID string, state map[string]interface{}) error
}

// ContextLookup supplies background material for the researcher step.
type ContextLookup interface {
	Summary(ctx context.Context, topic string) (string, error)
}

// PitchWriter persists the final pitch document outside the database.
type PitchWriter interface {
	Write(sessionID, content string) (string, error)
}

// Runner drives the fixed agent sequence for one session. Lookup, Writer
// and Logger are optional; Cache, Registry, Gateway and Log are not.
type Runner struct {
	SessionID string
	Cache     *session.Cache
	Registry  *agents.Registry
	Gateway   CompletionGateway
	Log       PersistenceLog
	Lookup    ContextLookup
	Writer    PitchWriter
	Logger    *log.Logger

	rec *session.Record
}

// Initialize resolves or creates the session record. Idempotent; a no-op
// once the runner is bound to a record.
func (r *Runner) Initialize() error {
	if r.rec != nil {
		return nil
	}
	rec, err := r.Cache.GetOrCreate(r.SessionID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSessionResolution, err)
	}
	r.rec = rec
	return nil
}

// Run executes the full pipeline for one user message. A step-level
// gateway failure is absorbed into the trace and the pipeline continues
// with the error text as that step's output; only session resolution and
// a rendering defect abort the run.
func (r *Runner) Run(ctx context.Context, message string, obs Observer) (*Transcript, error) {
	if err := r.Initialize(); err != nil {
		telemetry.RunsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	questionID, err := r.Log.SaveQuestion(ctx, r.SessionID, message, "user")
	if err != nil {
		r.logf("save question: %v", err)
		telemetry.PersistenceFailures.Inc()
		questionID = ""
	}

	roles := r.Registry.Roles()
	trace := make([]Step, 0, len(roles))
	for _, role := range roles {
		input, err := r.Registry.Render(role.Name, message, r.rec.Values())
		if err != nil {
			// Ordering bug or unknown role: fail loudly instead of
			// substituting empty text.
			telemetry.RunsTotal.WithLabelValues("failed").Inc()
			return nil, err
		}
		if role.Name == agents.RoleResearcher {
			input = r.enrichResearch(ctx, message, input)
		}

		emit(obs, Step{Agent: role.Name, Text: "Processing: " + truncate(input, 50) + "...", Status: StatusStarting})

		started := time.Now()
		output, err := r.Gateway.Complete(ctx, role.Model, role.Instruction, input)
		telemetry.StepDuration.WithLabelValues(role.Name).Observe(time.Since(started).Seconds())

		var step Step
		if err != nil {
			// Degrade, don't abort: later steps render with whatever
			// text is available, error text included.
			output = fmt.Sprintf("Error executing %s: %v", role.Name, err)
			step = Step{Agent: role.Name, Text: output, Status: StatusError}
			r.logf("agent %s: %v", role.Name, err)
		} else {
			step = Step{Agent: role.Name, Text: output, Status: StatusCompleted}
		}
		r.rec.Set(role.OutputKey, output)
		if role.Name == agents.RoleResearcher && step.Status == StatusCompleted {
			if err := r.rec.AddNote(output); err != nil {
				r.logf("index research note: %v", err)
			}
		}

		telemetry.StepsTotal.WithLabelValues(role.Name, step.Status).Inc()
		trace = append(trace, step)
		emit(obs, step)
	}

	finalText := composePitch(r.rec)

	if _, err := r.Log.SaveAnswer(ctx, r.SessionID, agents.RoleGreeter, finalText, questionID); err != nil {
		r.logf("save answer: %v", err)
		telemetry.PersistenceFailures.Inc()
	}
	if err := r.Log.SaveStateSnapshot(ctx, r.SessionID, r.rec.Snapshot()); err != nil {
		r.logf("save state snapshot: %v", err)
		telemetry.PersistenceFailures.Inc()
	}
	if r.Writer != nil {
		if path, err := r.Writer.Write(r.SessionID, finalText); err != nil {
			r.logf("write pitch file: %v", err)
		} else {
			r.logf("pitch written: %s", path)
		}
	}

	telemetry.RunsTotal.WithLabelValues("completed").Inc()
	return &Transcript{FinalText: finalText, Trace: trace}, nil
}

// enrichResearch prepends cached encyclopedia context to the researcher
// input when a lookup source is wired. Lookup failures leave the input
// untouched.
func (r *Runner) enrichResearch(ctx context.Context, topic, input string) string {
	if r.Lookup == nil {
		return input
	}
	summary, err := r.Lookup.Summary(ctx, topic)
	if err != nil {
		r.logf("wikipedia lookup: %v", err)
		return input
	}
	if summary == "" {
		return input
	}
	return input + "\n\nBackground:\n" + summary
}

// composePitch assembles the final document from the screenwriter's and
// critic's outputs.
func composePitch(rec *session.Record) string {
	outline, _ := rec.Get(agents.KeyOutline)
	critique, _ := rec.Get(agents.KeyCritique)
	return fmt.Sprintf("# Film Concept Pitch\n\n%s\n\n---\n**Critic's Notes:**\n%s\n", outline, critique)
}

func (r *Runner) logf(format string, args ...interface{}) {
	if r.Logger != nil {
		r.Logger.Printf(format, args...)
	}
}

func emit(obs Observer, s Step) {
	if obs != nil {
		obs(s)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
