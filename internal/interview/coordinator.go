package interview

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"profiler/internal/aggregator"
	"profiler/internal/analyzer"
	"profiler/internal/backend"
	"profiler/internal/config"
	"profiler/internal/conversation"
	"profiler/internal/logging"
	"profiler/internal/phase"
	"profiler/internal/profile"
	"profiler/internal/recall"
	"profiler/internal/store"
)

const interviewerSystemPrompt = `You are a friendly career-profiling interviewer.
Ask one focused follow-up question at a time. Keep replies short and warm.
Stay on the current topic; do not jump ahead to later topics.`

const closingMessage = "That's everything I need. Thank you! Your profile report is ready."

// Exchange is the outcome of one user submission.
type Exchange struct {
	SessionID string `json:"session_id"`

	// Seq is the sequence number of the user turn.
	Seq int `json:"seq"`

	// Reply is the full interviewer response, including the next phase's
	// opening question when a boundary was crossed.
	Reply string `json:"reply"`

	Phase     string `json:"phase"`
	Advanced  bool   `json:"advanced"`
	Forced    bool   `json:"forced,omitempty"`
	Completed bool   `json:"completed"`

	// FieldCount is the profile size after this exchange.
	FieldCount int `json:"field_count"`
}

// Coordinator runs exchanges: it serializes per-session access, drives the
// backend, fans out analyzers, merges their patches, and advances the phase
// machine.
type Coordinator struct {
	cfg       config.InterviewConfig
	machine   *phase.Machine
	registry  *Registry
	backend   backend.Client
	agg       *aggregator.Aggregator
	recaller  recall.Recaller
	persister store.Persister

	// analyzers[i] are the resolved analyzers of phase i.
	analyzers [][]analyzer.Analyzer
}

// NewCoordinator wires a coordinator, resolving every phase's analyzer list
// up front so config mistakes fail at boot rather than mid-interview.
func NewCoordinator(
	cfg config.InterviewConfig,
	registry *Registry,
	client backend.Client,
	analyzerReg *analyzer.Registry,
	recaller recall.Recaller,
	persister store.Persister,
) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	resolved := make([][]analyzer.Analyzer, len(cfg.Phases))
	for i, pc := range cfg.Phases {
		as, err := analyzerReg.Resolve(pc.Analyzers)
		if err != nil {
			return nil, fmt.Errorf("phase %q: %w", pc.Name, err)
		}
		resolved[i] = as
	}

	return &Coordinator{
		cfg:       cfg,
		machine:   phase.NewMachine(cfg.Phases),
		registry:  registry,
		backend:   client,
		agg:       aggregator.New(cfg.AnalyzerPriority),
		recaller:  recaller,
		persister: persister,
		analyzers: resolved,
	}, nil
}

// Registry exposes the session registry for transports.
func (c *Coordinator) Registry() *Registry {
	return c.registry
}

// Machine exposes the phase machine for reporting.
func (c *Coordinator) Machine() *phase.Machine {
	return c.machine
}

// Start opens a new session and returns it with the first question.
func (c *Coordinator) Start(ctx context.Context) (*Session, string, error) {
	sess, err := c.registry.Create()
	if err != nil {
		return nil, "", err
	}

	opening := c.cfg.Phases[0].OpeningPrompt
	turn := sess.Log.Append(conversation.RoleSystem, opening, c.cfg.Phases[0].Name)
	if err := c.persister.SaveTurn(sess.ID, turn); err != nil {
		logging.SessionWarn("Persist opening turn for %s: %v", sess.ID, err)
	}
	c.index(ctx, sess.ID, turn)

	logging.Exchange("Session %s started in phase %s", sess.ID, c.cfg.Phases[0].Name)
	return sess, opening, nil
}

// Respond runs one exchange: record the user turn, get the interviewer
// reply, fan out analyzers, merge, and evaluate phase progression. The
// exchange is atomic: if the backend fails, the user turn is rolled back
// and the session is unchanged.
func (c *Coordinator) Respond(ctx context.Context, sessionID, message string) (*Exchange, error) {
	sess, err := c.registry.Get(sessionID)
	if err != nil {
		return nil, err
	}

	if err := c.acquire(sess); err != nil {
		return nil, err
	}
	defer sess.exchangeMu.Unlock()

	// Status may have changed while waiting for the slot.
	switch sess.Status() {
	case StatusComplete:
		return nil, ErrSessionComplete
	case StatusArchived:
		return nil, ErrSessionArchived
	case StatusAborted:
		return nil, ErrSessionNotFound
	}

	state := sess.PhaseState()
	pc, ok := c.machine.Current(state)
	if !ok {
		return nil, ErrSessionComplete
	}

	reqLog := logging.WithRequestID(logging.CategoryExchange, fmt.Sprintf("%s/%d", sessionID, sess.Log.LastSeq()+1))
	timer := logging.StartTimer(logging.CategoryExchange, "exchange")
	defer timer.Stop()

	userTurn := sess.Log.Append(conversation.RoleUser, message, pc.Name)
	if err := c.persister.SaveTurn(sessionID, userTurn); err != nil {
		sess.Log.RemoveLast(userTurn.Seq)
		return nil, fmt.Errorf("persist user turn: %w", err)
	}

	reply, err := c.backend.Converse(ctx,
		c.systemPrompt(pc), sess.Log.Window(c.cfg.HistoryWindow))
	if err != nil {
		// Roll back: the conversation must not contain a user turn the
		// interviewer never saw.
		sess.Log.RemoveLast(userTurn.Seq)
		if derr := c.persister.DeleteTurn(sessionID, userTurn.Seq); derr != nil {
			logging.SessionWarn("Rollback of turn %d failed: %v", userTurn.Seq, derr)
		}
		reqLog.Warn("Backend failed, exchange rolled back: %v", err)
		return nil, fmt.Errorf("exchange at seq %d: %w", userTurn.Seq, err)
	}

	replyTurn := sess.Log.Append(conversation.RoleSystem, reply, pc.Name)
	if err := c.persister.SaveTurn(sessionID, replyTurn); err != nil {
		logging.SessionWarn("Persist interviewer turn for %s: %v", sessionID, err)
	}

	snapshot := sess.Profile()
	patches, scratch := c.analyze(ctx, sess, state, userTurn, snapshot)

	// Index only after the fan-out: recall must surface earlier conversation,
	// not the very turns the analyzers are looking at.
	c.index(ctx, sessionID, userTurn)
	c.index(ctx, sessionID, replyTurn)

	merged := c.agg.Merge(snapshot, patches)

	outcome := c.machine.Evaluate(state, snapshot, merged)
	status := StatusActive
	if outcome.Completed {
		status = StatusComplete
	}

	// Crossing a boundary adds the next opening question (or the closing
	// message) as its own interviewer turn, stamped with the phase it opens.
	if outcome.Advanced {
		followUp := closingMessage
		if next, ok := c.machine.Current(outcome.State); ok {
			followUp = next.OpeningPrompt
		}
		ft := sess.Log.Append(conversation.RoleSystem, followUp, c.machine.Name(outcome.State))
		if err := c.persister.SaveTurn(sessionID, ft); err != nil {
			logging.SessionWarn("Persist follow-up turn for %s: %v", sessionID, err)
		}
		c.index(ctx, sessionID, ft)
		reply = reply + "\n\n" + followUp
	}

	sess.commit(outcome.State, merged, scratch, status)
	if err := c.persister.SaveSession(sess.record()); err != nil {
		logging.SessionWarn("Persist session %s: %v", sessionID, err)
	}

	reqLog.Info("Exchange done: phase=%s advanced=%v completed=%v fields=%d",
		c.machine.Name(outcome.State), outcome.Advanced, outcome.Completed, merged.FieldCount())

	return &Exchange{
		SessionID:  sessionID,
		Seq:        userTurn.Seq,
		Reply:      reply,
		Phase:      c.machine.Name(outcome.State),
		Advanced:   outcome.Advanced,
		Forced:     outcome.Forced,
		Completed:  outcome.Completed,
		FieldCount: merged.FieldCount(),
	}, nil
}

// acquire takes the session's exchange slot per the backpressure policy.
func (c *Coordinator) acquire(sess *Session) error {
	if c.cfg.Backpressure == config.BackpressureReject {
		if !sess.exchangeMu.TryLock() {
			return ErrSessionBusy
		}
		return nil
	}
	sess.exchangeMu.Lock()
	return nil
}

// analyze fans the phase's analyzers out concurrently and collects their
// patches. Analyzer failures are absorbed: a failing analyzer costs its
// patch, never the exchange.
func (c *Coordinator) analyze(
	ctx context.Context,
	sess *Session,
	state phase.State,
	userTurn conversation.Turn,
	snapshot profile.Profile,
) ([]profile.Patch, map[string]string) {
	as := c.analyzers[state.Index]
	recent := sess.Log.Window(c.cfg.HistoryWindow)

	recalled, err := c.recaller.Recall(ctx, sess.ID, userTurn.Content, 0)
	if err != nil {
		logging.AnalyzerDebug("Recall for %s failed: %v", sess.ID, err)
	}

	var (
		mu      sync.Mutex
		patches []profile.Patch
		scratch = make(map[string]string)
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, a := range as {
		a := a
		g.Go(func() error {
			actx, cancel := context.WithTimeout(gctx, c.cfg.AnalyzerTimeoutDuration())
			defer cancel()

			res, err := a.Analyze(actx, analyzer.Input{
				SessionID: sess.ID,
				Seq:       userTurn.Seq,
				Recent:    recent,
				Recalled:  recalled,
				Snapshot:  snapshot,
				Scratch:   sess.ScratchFor(a.Name()),
			})
			if err != nil {
				logging.AnalyzerWarn("Analyzer %s failed at seq %d: %v", a.Name(), userTurn.Seq, err)
				return nil // soft failure
			}

			mu.Lock()
			patches = append(patches, res.Patch)
			if res.Scratch != "" {
				scratch[a.Name()] = res.Scratch
			}
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	logging.Analyzer("Phase %s: %d/%d analyzers produced patches at seq %d",
		c.machine.Name(state), len(patches), len(as), userTurn.Seq)
	return patches, scratch
}

// systemPrompt focuses the interviewer on the current phase.
func (c *Coordinator) systemPrompt(pc config.PhaseConfig) string {
	var sb strings.Builder
	sb.WriteString(interviewerSystemPrompt)
	sb.WriteString("\n\nCurrent topic: ")
	sb.WriteString(strings.ReplaceAll(pc.Name, "_", " "))
	sb.WriteString("\nYou still need to learn about: ")
	for i, ref := range pc.RequiredRefs() {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(strings.ReplaceAll(ref.Name, "_", " "))
	}
	return sb.String()
}

func (c *Coordinator) index(ctx context.Context, sessionID string, turn conversation.Turn) {
	if err := c.recaller.Index(ctx, sessionID, turn); err != nil {
		logging.RecallDebug("Index turn %d for %s failed: %v", turn.Seq, sessionID, err)
	}
}
