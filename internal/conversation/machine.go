package conversation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MikhalGarbuz/analyze-your-life/internal/analysis"
	"github.com/MikhalGarbuz/analyze-your-life/internal/domain"
)

// Analyzer runs analyses on a user's experiment.
type Analyzer interface {
	Correlate(ctx context.Context, userID, experimentID int64) (*analysis.CorrelationReport, error)
	Regress(ctx context.Context, userID, experimentID, targetID int64) (*analysis.RegressionReport, error)
}

// Config wires a Machine to its collaborators.
type Config struct {
	Experiments domain.ExperimentRepository
	Parameters  domain.ParameterRepository
	Entries     domain.EntryRepository
	Analyzer    Analyzer
	Store       SessionStore
	Metrics     domain.Metrics
	// TTL expires sessions idle for longer than this. Zero disables expiry.
	TTL time.Duration
	Now func() time.Time
}

// Machine is the conversation state machine. Actions of one user are
// serialized; different users proceed in parallel.
type Machine struct {
	cfg Config

	mu    sync.Mutex
	locks map[int64]*userLock
}

// userLock serializes one user's actions. refs counts holders and waiters;
// the entry is dropped when it reaches zero.
type userLock struct {
	sync.Mutex
	refs int
}

type stepFunc func(m *Machine, ctx context.Context, s *Session, a Action) (*Reply, error)

var steps = map[State]stepFunc{
	StateExperimentName:       (*Machine).experimentName,
	StateExperimentConfirm:    (*Machine).experimentConfirm,
	StateParameterName:        (*Machine).parameterName,
	StateParameterRole:        (*Machine).parameterRole,
	StateParameterType:        (*Machine).parameterType,
	StateParameterClassMin:    (*Machine).parameterClassMin,
	StateParameterClassMax:    (*Machine).parameterClassMax,
	StateParameterConfirm:     (*Machine).parameterConfirm,
	StateEntryDate:            (*Machine).entryDate,
	StateEntrySelectExp:       (*Machine).entrySelectExperiment,
	StateEntrySelectParam:     (*Machine).entrySelectParameter,
	StateEntryWaitValue:       (*Machine).entryWaitValue,
	StateDeleteSelect:         (*Machine).deleteSelect,
	StateDeleteConfirm:        (*Machine).deleteConfirm,
	StateAnalysisSelectExp:    (*Machine).analysisSelectExperiment,
	StateAnalysisSelectTarget: (*Machine).analysisSelectTarget,
}

// New creates a Machine.
func New(cfg Config) *Machine {
	if cfg.Metrics == nil {
		cfg.Metrics = domain.NopMetrics{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Machine{cfg: cfg, locks: make(map[int64]*userLock)}
}

func (m *Machine) lock(userID int64) func() {
	m.mu.Lock()
	l, ok := m.locks[userID]
	if !ok {
		l = &userLock{}
		m.locks[userID] = l
	}
	l.refs++
	m.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		m.mu.Lock()
		if l.refs--; l.refs == 0 {
			delete(m.locks, userID)
		}
		m.mu.Unlock()
	}
}

// Current returns the user's session, or nil when idle.
func (m *Machine) Current(ctx context.Context, userID int64) (*Session, error) {
	unlock := m.lock(userID)
	defer unlock()
	return m.load(ctx, userID)
}

// Handle applies one action for userID.
//
// Validation failures return the re-issued prompt together with a
// *domain.ValidationError and leave the session unchanged. Not-found,
// state and insufficient-data failures return a reply describing the
// failure together with the typed error; the session is reset to idle,
// except for finishing data entry with nothing collected, which keeps it.
// An unknown action kind or flow returns a nil reply and a
// *domain.ValidationError. Other errors come from collaborators; the
// session keeps its last saved state and the reply is nil.
func (m *Machine) Handle(ctx context.Context, userID int64, a Action) (*Reply, error) {
	unlock := m.lock(userID)
	defer unlock()

	switch a.Kind {
	case ActionCancel:
		return m.cancel(ctx, userID)
	case ActionStart:
		return m.start(ctx, userID, a)
	case ActionInput, ActionFinish:
	default:
		return nil, &domain.ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown action kind %q", a.Kind)}
	}

	s, err := m.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return &Reply{State: StateIdle, Text: "Nothing is in progress.", Done: true},
			&domain.StateError{State: string(StateIdle), Action: string(a.Kind), Reason: "no workflow in progress"}
	}

	step, ok := steps[s.State]
	if !ok {
		return m.abort(ctx, s, &domain.StateError{State: string(s.State), Action: string(a.Kind), Reason: "unknown state"})
	}
	if a.Kind == ActionFinish && s.State != StateEntrySelectParam {
		return m.abort(ctx, s, &domain.StateError{State: string(s.State), Action: string(a.Kind), Reason: "nothing to finish here"})
	}
	return step(m, ctx, s, a)
}

func (m *Machine) load(ctx context.Context, userID int64) (*Session, error) {
	s, err := m.cfg.Store.Load(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if s != nil && m.cfg.TTL > 0 && m.cfg.Now().Sub(s.UpdatedAt) > m.cfg.TTL {
		if err := m.cfg.Store.Delete(ctx, userID); err != nil {
			return nil, fmt.Errorf("expire session: %w", err)
		}
		m.cfg.Metrics.WorkflowFinished(ctx, string(s.Flow), "expired")
		return nil, nil
	}
	return s, nil
}

func (m *Machine) cancel(ctx context.Context, userID int64) (*Reply, error) {
	s, err := m.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return &Reply{State: StateIdle, Text: "Nothing to cancel.", Done: true}, nil
	}
	return m.finish(ctx, s, "cancelled", &Reply{Text: "Cancelled."})
}

func (m *Machine) start(ctx context.Context, userID int64, a Action) (*Reply, error) {
	s := &Session{ID: uuid.NewString(), UserID: userID, Flow: a.Flow}

	switch a.Flow {
	case FlowDefineExperiment:
		s.State = StateExperimentName
		s.Experiment = &ExperimentDraft{}

	case FlowDefineParameter:
		if _, err := m.ownedExperiment(ctx, userID, a.ExperimentID); err != nil {
			return m.fail(ctx, s, err)
		}
		s.State = StateParameterName
		s.Parameter = &ParameterDraft{ExperimentID: a.ExperimentID}

	case FlowEnterData:
		s.Entry = &EntryDraft{Date: domain.LocalDay(m.cfg.Now())}
		s.State = StateEntrySelectExp
		if a.AskDate {
			s.State = StateEntryDate
		}

	case FlowDeleteExperiment:
		s.State = StateDeleteSelect
		s.Deletion = &DeletionDraft{}

	case FlowCorrelation, FlowRegression:
		s.State = StateAnalysisSelectExp
		s.Analysis = &AnalysisDraft{}

	default:
		return nil, &domain.ValidationError{Field: "flow", Reason: fmt.Sprintf("unknown flow %q", a.Flow)}
	}

	if s.State == StateEntrySelectExp || s.State == StateDeleteSelect || s.State == StateAnalysisSelectExp {
		exps, err := m.cfg.Experiments.ListExperiments(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("list experiments: %w", err)
		}
		if len(exps) == 0 {
			if err := m.cfg.Store.Delete(ctx, userID); err != nil {
				return nil, fmt.Errorf("delete session: %w", err)
			}
			return &Reply{Flow: s.Flow, State: StateIdle, Done: true,
				Text: "You have no experiments yet. Define one first."}, nil
		}
	}

	log.Printf("conversation: user=%d start %s", userID, a.Flow)
	return m.advance(ctx, s, s.State)
}

// advance moves s to state, saves it and returns the new state's prompt.
func (m *Machine) advance(ctx context.Context, s *Session, state State) (*Reply, error) {
	s.State = state
	s.UpdatedAt = m.cfg.Now()
	if err := m.cfg.Store.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return m.prompt(ctx, s)
}

// finish ends the workflow and returns to idle.
func (m *Machine) finish(ctx context.Context, s *Session, outcome string, reply *Reply) (*Reply, error) {
	if err := m.cfg.Store.Delete(ctx, s.UserID); err != nil {
		return nil, fmt.Errorf("delete session: %w", err)
	}
	m.cfg.Metrics.WorkflowFinished(ctx, string(s.Flow), outcome)
	log.Printf("conversation: user=%d %s %s", s.UserID, s.Flow, outcome)
	reply.Flow = s.Flow
	reply.State = StateIdle
	reply.Done = true
	return reply, nil
}

// abort collapses the session to idle and surfaces cause.
func (m *Machine) abort(ctx context.Context, s *Session, cause error) (*Reply, error) {
	reply, err := m.finish(ctx, s, "aborted", &Reply{Text: cause.Error()})
	if err != nil {
		return nil, err
	}
	return reply, cause
}

// reject re-issues the current prompt after a validation failure. The
// session is not saved.
func (m *Machine) reject(ctx context.Context, s *Session, cause error) (*Reply, error) {
	reply, err := m.prompt(ctx, s)
	if err != nil {
		return nil, err
	}
	reply.Text = cause.Error() + "\n" + reply.Text
	return reply, cause
}

// fail routes a step error: typed domain errors abort or re-prompt,
// anything else propagates with the session untouched.
func (m *Machine) fail(ctx context.Context, s *Session, err error) (*Reply, error) {
	var (
		verr *domain.ValidationError
		nf   *domain.NotFoundError
		ide  *domain.InsufficientDataError
		serr *domain.StateError
	)
	switch {
	case errors.As(err, &verr):
		return m.reject(ctx, s, err)
	case errors.As(err, &nf), errors.As(err, &ide), errors.As(err, &serr):
		return m.abort(ctx, s, err)
	}
	return nil, err
}

func (m *Machine) ownedExperiment(ctx context.Context, userID, id int64) (*domain.Experiment, error) {
	exp, err := m.cfg.Experiments.GetExperiment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get experiment: %w", err)
	}
	if exp == nil || exp.UserID != userID {
		return nil, &domain.NotFoundError{Kind: "experiment", ID: id}
	}
	return exp, nil
}

func (m *Machine) experimentParameter(ctx context.Context, experimentID, id int64) (*domain.Parameter, error) {
	p, err := m.cfg.Parameters.GetParameter(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get parameter: %w", err)
	}
	if p == nil || p.ExperimentID != experimentID {
		return nil, &domain.NotFoundError{Kind: "parameter", ID: id}
	}
	return p, nil
}

func (m *Machine) experimentChoices(ctx context.Context, userID int64) ([]Choice, error) {
	exps, err := m.cfg.Experiments.ListExperiments(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list experiments: %w", err)
	}
	choices := make([]Choice, len(exps))
	for i, e := range exps {
		choices[i] = Choice{Label: e.Name, Payload: experimentPayload(e.ID)}
	}
	return choices, nil
}
