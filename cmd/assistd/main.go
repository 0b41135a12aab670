package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"stepassist/internal/config"
	"stepassist/internal/fallback"
	"stepassist/internal/guard"
	"stepassist/internal/journal"
	"stepassist/internal/metrics"
	"stepassist/internal/observe"
	"stepassist/internal/prompt"
	"stepassist/internal/render"
	"stepassist/internal/route"
	"stepassist/internal/track"
	"stepassist/internal/vlm"
)

// #region wire

// inboundEvent is one JSONL line on stdin. Type selects which fields apply:
// observation (activity_id, step_index, confidence, timestamp), query
// (query_id, text, image_ref), or reset (no fields).
type inboundEvent struct {
	Type       string  `json:"type"`
	ActivityID string  `json:"activity_id,omitempty"`
	StepIndex  int     `json:"step_index,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Timestamp  string  `json:"timestamp,omitempty"`
	QueryID    string  `json:"query_id,omitempty"`
	Text       string  `json:"text,omitempty"`
	ImageRef   string  `json:"image_ref,omitempty"`
}

// outboundError reports a failed query on stdout.
type outboundError struct {
	QueryID   string `json:"query_id"`
	Error     string `json:"error"`
	Retriable bool   `json:"retriable"`
}

// #endregion wire

// #region main
func main() {
	configPath := flag.String("config", "", "path to YAML config (empty = defaults plus env)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[ASSISTD] config: %v", err)
	}

	journalStore, err := journal.NewStore(cfg.Journal.Path)
	if err != nil {
		log.Fatalf("[ASSISTD] open journal: %v", err)
	}
	defer journalStore.Close()

	catalog, err := render.LoadCatalog(cfg.Catalog.Path)
	if err != nil {
		log.Fatalf("[ASSISTD] load catalog: %v", err)
	}

	window, err := track.NewWindow(cfg.Window.Capacity, cfg.Window.MaxActivities)
	if err != nil {
		log.Fatalf("[ASSISTD] window: %v", err)
	}
	tracker := track.NewTracker(guard.NewGuard(cfg.GuardSettings()), window)

	prompts, err := prompt.NewManager(prompt.NewMemoryApplier(), cfg.BusyPolicy(), cfg.Fallback.BaseContext)
	if err != nil {
		log.Fatalf("[ASSISTD] prompt manager: %v", err)
	}

	model, err := vlm.NewOllamaClient(cfg.Model.Host, cfg.Model.Name)
	if err != nil {
		log.Fatalf("[ASSISTD] model client: %v", err)
	}

	recorder := metrics.NewPrometheusRecorder()

	exec := fallback.NewExecutor(fallback.Deps{
		Tracker:  tracker,
		Engine:   route.NewEngine(cfg.RouteSettings(), route.NewKeywordClassifier()),
		Prompts:  prompts,
		Model:    model,
		Renderer: render.NewRenderer(catalog),
		Sink:     journalStore,
		Recorder: recorder,
		Resolve:  readFrameFile,
	}, fallback.Config{
		ModelTimeout:     cfg.ModelTimeout(),
		DegradedResponse: cfg.Fallback.DegradedResponse,
	})

	d := &daemon{
		tracker:  tracker,
		exec:     exec,
		journal:  journalStore,
		recorder: recorder,
		out:      json.NewEncoder(os.Stdout),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log.Printf("[ASSISTD] ready: journal=%s catalog=%s model=%s@%s metrics=%s",
		cfg.Journal.Path, cfg.Catalog.Path, cfg.Model.Name, cfg.Model.Host, cfg.Metrics.Addr)

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics listener: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, sdCancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer sdCancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	// Detached stdin reader: a blocked Read cannot hold up shutdown, the
	// channel close signals EOF to the dispatcher.
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		if err := scanner.Err(); err != nil {
			log.Printf("[ASSISTD] stdin: %v", err)
		}
	}()

	g.Go(func() error {
		// Dispatcher exit (EOF, signal, or fatal query) shuts everything down.
		defer cancel()
		return d.dispatch(gctx, lines)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("[ASSISTD] %v", err)
	}
	log.Printf("[ASSISTD] shutdown complete")
}

// #endregion main

// #region daemon

// daemon wires the decision core to the JSONL loop.
type daemon struct {
	tracker  *track.Tracker
	exec     *fallback.Executor
	journal  *journal.Store
	recorder metrics.Recorder

	outMu sync.Mutex
	out   *json.Encoder
}

// dispatch consumes stdin lines until EOF or cancellation. Observations are
// applied inline because they are cheap and ordered; queries fan out so a
// slow model call never stalls ingestion.
func (d *daemon) dispatch(ctx context.Context, lines <-chan string) error {
	queries, qctx := errgroup.WithContext(ctx)
	for {
		select {
		case <-qctx.Done():
			// Outer shutdown or a fatally failed query; stop consuming and
			// surface the first error.
			if err := queries.Wait(); err != nil {
				return err
			}
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				log.Printf("[ASSISTD] stdin closed, draining in-flight queries")
				return queries.Wait()
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			var ev inboundEvent
			if err := json.Unmarshal([]byte(line), &ev); err != nil {
				log.Printf("[ASSISTD] bad event: %v", err)
				continue
			}
			switch ev.Type {
			case "observation":
				d.handleObservation(ev)
			case "query":
				query := route.Query{ID: ev.QueryID, Text: ev.Text, ImageRef: ev.ImageRef}
				if query.ID == "" {
					query.ID = uuid.NewString()
				}
				queries.Go(func() error {
					return d.handleQuery(qctx, query)
				})
			case "reset":
				d.tracker.Reset()
				log.Printf("[ASSISTD] tracker reset")
			default:
				log.Printf("[ASSISTD] unknown event type %q", ev.Type)
			}
		}
	}
}

// handleObservation runs one detection through the guard and journals the
// outcome. Malformed input is logged and dropped, never fatal.
func (d *daemon) handleObservation(ev inboundEvent) {
	at := time.Now().UTC()
	if ev.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339Nano, ev.Timestamp)
		if err != nil {
			log.Printf("[ASSISTD] bad observation timestamp %q: %v", ev.Timestamp, err)
			return
		}
		at = parsed
	}

	obs := observe.Observation{
		ActivityID: ev.ActivityID,
		StepIndex:  ev.StepIndex,
		Confidence: ev.Confidence,
		ObservedAt: at,
	}
	decision, err := d.tracker.Ingest(obs)
	if err != nil {
		log.Printf("[ASSISTD] observation rejected: %v", err)
		return
	}

	d.recorder.ObserveGuard(string(decision.Action), string(decision.Band))
	if err := d.journal.LogGuard(obs, decision); err != nil {
		log.Printf("[ASSISTD] journal guard write failed: %v", err)
	}
	log.Printf("[GUARD] activity=%s step=%d conf=%.2f action=%s band=%s reason=%q",
		obs.ActivityID, obs.StepIndex, obs.Confidence, decision.Action, decision.Band, decision.Reason)
}

// handleQuery answers one query. A poisoned or unrestorable prompt manager is
// the only fatal condition; everything else is reported to the client and the
// loop keeps going.
func (d *daemon) handleQuery(ctx context.Context, query route.Query) error {
	resp, err := d.exec.Handle(ctx, query)
	if err != nil {
		if errors.Is(err, prompt.ErrRestoreFailed) || errors.Is(err, prompt.ErrPoisoned) {
			// The executor already names the query in the error.
			d.emit(outboundError{QueryID: query.ID, Error: err.Error(), Retriable: false})
			return err
		}
		d.emit(outboundError{QueryID: query.ID, Error: err.Error(), Retriable: errors.Is(err, prompt.ErrBusy)})
		return nil
	}
	d.emit(resp)
	return nil
}

// emit writes one JSON line to stdout. Serialized so concurrent query
// goroutines never interleave bytes.
func (d *daemon) emit(v any) {
	d.outMu.Lock()
	defer d.outMu.Unlock()
	if err := d.out.Encode(v); err != nil {
		log.Printf("[ASSISTD] emit: %v", err)
	}
}

// #endregion daemon

// #region helpers

// readFrameFile resolves an image_ref as a path on local disk.
func readFrameFile(ref string) ([]byte, error) {
	data, err := os.ReadFile(ref)
	if err != nil {
		return nil, fmt.Errorf("read frame %s: %w", ref, err)
	}
	return data, nil
}

// #endregion helpers
