package fallback

// #region imports
import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"stepassist/internal/metrics"
	"stepassist/internal/prompt"
	"stepassist/internal/route"
	"stepassist/internal/track"
	"stepassist/internal/vlm"
)

// #endregion

// #region types

// Response is the uniform answer shape for both modes.
type Response struct {
	QueryID      string `json:"query_id"`
	ResponseText string `json:"response_text"`
	ElapsedMs    int64  `json:"elapsed_ms"`
}

// Renderer answers recognized queries from the catalog.
type Renderer interface {
	Render(snap track.Snapshot, class route.Class) (string, error)
}

// RouteSink journals routing decisions. Failures are logged, never fatal.
type RouteSink interface {
	LogRoute(query route.Query, d route.Decision, elapsedMs int64) error
}

// ImageResolver loads the frame a query references.
type ImageResolver func(ref string) ([]byte, error)

// Config shapes the answer path.
type Config struct {
	ModelTimeout     time.Duration
	DegradedResponse string
}

// Deps collects the executor's collaborators. Recorder and Sink may be nil.
type Deps struct {
	Tracker  *track.Tracker
	Engine   *route.Engine
	Prompts  *prompt.Manager
	Model    vlm.Client
	Renderer Renderer
	Sink     RouteSink
	Recorder metrics.Recorder
	Resolve  ImageResolver
}

// #endregion types

// #region executor

// Executor answers queries: template answers straight from the catalog,
// direct answers through a guarded context switch around one model call.
type Executor struct {
	tracker  *track.Tracker
	engine   *route.Engine
	prompts  *prompt.Manager
	model    vlm.Client
	renderer Renderer
	sink     RouteSink
	recorder metrics.Recorder
	resolve  ImageResolver
	config   Config
}

// NewExecutor wires the executor.
func NewExecutor(deps Deps, config Config) *Executor {
	recorder := deps.Recorder
	if recorder == nil {
		recorder = metrics.NopRecorder{}
	}
	return &Executor{
		tracker:  deps.Tracker,
		engine:   deps.Engine,
		prompts:  deps.Prompts,
		model:    deps.Model,
		renderer: deps.Renderer,
		sink:     deps.Sink,
		recorder: recorder,
		resolve:  deps.Resolve,
		config:   config,
	}
}

// #endregion executor

// #region handle

// Handle routes and answers one query. Model failures and render failures
// degrade into the canned response; busy and restore failures propagate so
// the caller can reply with an error frame or shut down.
func (e *Executor) Handle(ctx context.Context, query route.Query) (Response, error) {
	start := time.Now()
	snap := e.tracker.Current()
	decision := e.engine.Route(snap, query)
	log.Printf("[FALLBACK] query=%s mode=%s score=%.2f class=%s", query.ID, decision.Mode, decision.Score, decision.Class)
	e.recorder.ObserveRoute(string(decision.Mode), decision.Score)

	var text string
	if decision.Mode == route.ModeTemplate {
		rendered, err := e.renderer.Render(snap, decision.Class)
		if err != nil {
			log.Printf("[FALLBACK] template render failed for %s: %v", query.ID, err)
			rendered = e.config.DegradedResponse
		}
		text = rendered
	} else {
		answered, err := e.answerDirect(ctx, snap, query)
		if err != nil {
			return Response{}, err
		}
		text = answered
	}

	elapsed := time.Since(start).Milliseconds()
	e.record(query, decision, elapsed)
	return Response{QueryID: query.ID, ResponseText: text, ElapsedMs: elapsed}, nil
}

// #endregion handle

// #region answer-direct

// answerDirect runs one model call inside a context switch episode. The
// deferred restore runs on every path; its failure overrides the answer.
func (e *Executor) answerDirect(ctx context.Context, snap track.Snapshot, query route.Query) (text string, err error) {
	episode, err := e.prompts.SwitchToDirect(ctx, directContext(snap, query))
	if err != nil {
		if errors.Is(err, prompt.ErrBusy) {
			e.recorder.IncSwitchBusy()
		}
		if errors.Is(err, prompt.ErrRestoreFailed) {
			e.recorder.IncRestoreFailure()
		}
		return "", fmt.Errorf("query %s: %w", query.ID, err)
	}
	defer func() {
		if rerr := episode.Restore(); rerr != nil {
			e.recorder.IncRestoreFailure()
			text = ""
			err = fmt.Errorf("query %s: %w", query.ID, rerr)
		}
	}()

	var image []byte
	if query.ImageRef != "" && e.resolve != nil {
		resolved, rerr := e.resolve(query.ImageRef)
		if rerr != nil {
			log.Printf("[FALLBACK] frame %s unavailable, answering without it: %v", query.ImageRef, rerr)
		} else {
			image = resolved
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, e.config.ModelTimeout)
	defer cancel()
	callStart := time.Now()
	answer, cerr := e.model.Answer(callCtx, vlm.Request{
		System: episode.Context(),
		Prompt: query.Text,
		Image:  image,
	})
	e.recorder.ObserveModelCall(callStatus(cerr), time.Since(callStart))
	if cerr != nil {
		log.Printf("[FALLBACK] model call failed for %s: %v", query.ID, cerr)
		return e.config.DegradedResponse, nil
	}
	return answer.Text, nil
}

func callStatus(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, vlm.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, vlm.ErrUnavailable):
		return "unavailable"
	}
	return "error"
}

// directContext builds the system prompt for one direct episode.
func directContext(snap track.Snapshot, query route.Query) string {
	if !snap.Active {
		return "Answer the wearer's question directly. No procedure is currently tracked."
	}
	return fmt.Sprintf(
		"Answer the wearer's question directly. They are working through %s, last seen on step %d (confidence %.2f).",
		snap.ActivityID, snap.StepIndex+1, snap.Confidence,
	)
}

// #endregion answer-direct

// #region record

func (e *Executor) record(query route.Query, d route.Decision, elapsedMs int64) {
	if e.sink == nil {
		return
	}
	if err := e.sink.LogRoute(query, d, elapsedMs); err != nil {
		log.Printf("[FALLBACK] journal write failed for %s: %v", query.ID, err)
	}
}

// #endregion record
