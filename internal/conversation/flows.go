package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MikhalGarbuz/analyze-your-life/internal/domain"
)

// choice normalizes a button payload or typed text.
func choice(a Action) string {
	return strings.ToLower(strings.TrimSpace(a.Input))
}

func unexpected(field, input string) error {
	return &domain.ValidationError{Field: field, Reason: fmt.Sprintf("unexpected choice %q", input)}
}

// --- define experiment ---

func (m *Machine) experimentName(ctx context.Context, s *Session, a Action) (*Reply, error) {
	name := strings.TrimSpace(a.Input)
	if name == "" {
		return m.reject(ctx, s, &domain.ValidationError{Field: "name", Reason: "must not be empty"})
	}
	s.Experiment.Name = name
	return m.advance(ctx, s, StateExperimentConfirm)
}

func (m *Machine) experimentConfirm(ctx context.Context, s *Session, a Action) (*Reply, error) {
	switch choice(a) {
	case PayloadCreate:
		exp, err := m.cfg.Experiments.CreateExperiment(ctx, s.UserID, s.Experiment.Name)
		if err != nil {
			return nil, fmt.Errorf("create experiment: %w", err)
		}
		return m.finish(ctx, s, "completed", &Reply{
			Text:         fmt.Sprintf("Experiment %q created. Now define its parameters.", exp.Name),
			ExperimentID: exp.ID,
			Choices:      []Choice{{"Add parameter", startPayload(FlowDefineParameter, exp.ID)}},
		})
	case PayloadCancel:
		return m.finish(ctx, s, "cancelled", &Reply{Text: "Experiment discarded."})
	}
	return m.reject(ctx, s, unexpected("confirm", a.Input))
}

// --- define parameter ---

func (m *Machine) parameterName(ctx context.Context, s *Session, a Action) (*Reply, error) {
	name := strings.TrimSpace(a.Input)
	if name == "" {
		return m.reject(ctx, s, &domain.ValidationError{Field: "name", Reason: "must not be empty"})
	}
	params, err := m.cfg.Parameters.ListParameters(ctx, s.Parameter.ExperimentID)
	if err != nil {
		return nil, fmt.Errorf("list parameters: %w", err)
	}
	if _, dup := domain.FindParameter(params, name); dup {
		return m.reject(ctx, s, &domain.ValidationError{Field: "name", Reason: fmt.Sprintf("parameter %q already exists", name)})
	}
	s.Parameter.Name = name
	return m.advance(ctx, s, StateParameterRole)
}

func (m *Machine) parameterRole(ctx context.Context, s *Session, a Action) (*Reply, error) {
	role, err := domain.ParseRole(strings.TrimPrefix(choice(a), rolePrefix))
	if err != nil {
		return m.reject(ctx, s, err)
	}
	s.Parameter.Role = role
	return m.advance(ctx, s, StateParameterType)
}

func (m *Machine) parameterType(ctx context.Context, s *Session, a Action) (*Reply, error) {
	typ, err := domain.ParseType(strings.TrimPrefix(choice(a), typePrefix))
	if err != nil {
		return m.reject(ctx, s, err)
	}
	s.Parameter.Type = typ
	if typ == domain.TypeClass {
		return m.advance(ctx, s, StateParameterClassMin)
	}
	s.Parameter.ClassMin, s.Parameter.ClassMax = nil, nil
	return m.advance(ctx, s, StateParameterConfirm)
}

func (m *Machine) parameterClassMin(ctx context.Context, s *Session, a Action) (*Reply, error) {
	n, err := domain.ParseClassBound("class_min", a.Input)
	if err != nil {
		return m.reject(ctx, s, err)
	}
	s.Parameter.ClassMin = &n
	return m.advance(ctx, s, StateParameterClassMax)
}

func (m *Machine) parameterClassMax(ctx context.Context, s *Session, a Action) (*Reply, error) {
	n, err := domain.ParseClassBound("class_max", a.Input)
	if err != nil {
		return m.reject(ctx, s, err)
	}
	if n < *s.Parameter.ClassMin {
		return m.reject(ctx, s, &domain.ValidationError{
			Field:  "class_max",
			Reason: fmt.Sprintf("must be at least the minimum %d", *s.Parameter.ClassMin),
		})
	}
	s.Parameter.ClassMax = &n
	return m.advance(ctx, s, StateParameterConfirm)
}

func (m *Machine) parameterConfirm(ctx context.Context, s *Session, a Action) (*Reply, error) {
	in := choice(a)
	switch in {
	case PayloadConfirm, PayloadConfirmAddAnother:
	case PayloadCancel:
		return m.finish(ctx, s, "cancelled", &Reply{Text: "Parameter discarded."})
	default:
		return m.reject(ctx, s, unexpected("confirm", a.Input))
	}

	d := s.Parameter
	p, err := domain.ValidateParameterDefinition(d.Name, d.Role, d.Type, d.ClassMin, d.ClassMax)
	if err != nil {
		return m.reject(ctx, s, err)
	}
	p.ExperimentID = d.ExperimentID
	created, err := m.cfg.Parameters.CreateParameter(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("create parameter: %w", err)
	}
	params, err := m.cfg.Parameters.ListParameters(ctx, d.ExperimentID)
	if err != nil {
		return nil, fmt.Errorf("list parameters: %w", err)
	}
	hint := completenessHint(params)
	m.cfg.Metrics.WorkflowFinished(ctx, string(s.Flow), "completed")

	if in == PayloadConfirmAddAnother {
		s.Parameter = &ParameterDraft{ExperimentID: d.ExperimentID}
		reply, err := m.advance(ctx, s, StateParameterName)
		if err != nil {
			return nil, err
		}
		reply.Parameter = created
		reply.Text = fmt.Sprintf("Parameter %q saved. %s\n%s", created.Name, hint, reply.Text)
		return reply, nil
	}

	if err := m.cfg.Store.Delete(ctx, s.UserID); err != nil {
		return nil, fmt.Errorf("delete session: %w", err)
	}
	return &Reply{
		Flow:         s.Flow,
		State:        StateIdle,
		Done:         true,
		Text:         fmt.Sprintf("Parameter %q saved. %s", created.Name, hint),
		ExperimentID: d.ExperimentID,
		Parameter:    created,
	}, nil
}

// --- enter data ---

func (m *Machine) entryDate(ctx context.Context, s *Session, a Action) (*Reply, error) {
	today := m.cfg.Now().In(time.Local)
	var day time.Time
	switch in := choice(a); in {
	case PayloadToday:
		day = today
	case PayloadYesterday:
		day = today.AddDate(0, 0, -1)
	default:
		d, err := time.ParseInLocation(domain.DayLayout, in, time.Local)
		if err != nil {
			return m.reject(ctx, s, &domain.ValidationError{Field: "date", Reason: "use the YYYY-MM-DD format"})
		}
		day = d
	}
	date := day.Format(domain.DayLayout)
	if date > today.Format(domain.DayLayout) {
		return m.reject(ctx, s, &domain.ValidationError{Field: "date", Reason: "must not be in the future"})
	}

	exps, err := m.cfg.Experiments.ListExperiments(ctx, s.UserID)
	if err != nil {
		return nil, fmt.Errorf("list experiments: %w", err)
	}
	if len(exps) == 0 {
		return m.finish(ctx, s, "aborted", &Reply{Text: "You have no experiments yet. Define one first."})
	}
	s.Entry.Date = date
	return m.advance(ctx, s, StateEntrySelectExp)
}

func (m *Machine) entrySelectExperiment(ctx context.Context, s *Session, a Action) (*Reply, error) {
	id, ok := parseID(experimentPrefix, a.Input)
	if !ok {
		return m.reject(ctx, s, unexpected("experiment", a.Input))
	}
	if _, err := m.ownedExperiment(ctx, s.UserID, id); err != nil {
		return m.fail(ctx, s, err)
	}
	params, err := m.cfg.Parameters.ListParameters(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list parameters: %w", err)
	}
	if len(params) == 0 {
		return m.finish(ctx, s, "aborted", &Reply{
			Text:         "This experiment has no parameters yet. Define parameters before entering data.",
			ExperimentID: id,
			Choices:      []Choice{{"Add parameter", startPayload(FlowDefineParameter, id)}},
		})
	}
	s.Entry.ExperimentID = id
	s.Entry.Values = map[string]domain.Value{}
	return m.advance(ctx, s, StateEntrySelectParam)
}

func (m *Machine) entrySelectParameter(ctx context.Context, s *Session, a Action) (*Reply, error) {
	if a.Kind == ActionFinish || choice(a) == PayloadFinish {
		return m.entryFinish(ctx, s)
	}
	id, ok := parseID(parameterPrefix, a.Input)
	if !ok {
		return m.reject(ctx, s, unexpected("parameter", a.Input))
	}
	if _, err := m.experimentParameter(ctx, s.Entry.ExperimentID, id); err != nil {
		return m.fail(ctx, s, err)
	}
	s.Entry.ParameterID = id
	return m.advance(ctx, s, StateEntryWaitValue)
}

func (m *Machine) entryWaitValue(ctx context.Context, s *Session, a Action) (*Reply, error) {
	p, err := m.experimentParameter(ctx, s.Entry.ExperimentID, s.Entry.ParameterID)
	if err != nil {
		return m.fail(ctx, s, err)
	}
	v, err := domain.ValidateValue(*p, a.Input)
	if err != nil {
		return m.fail(ctx, s, err)
	}
	if s.Entry.Values == nil {
		s.Entry.Values = map[string]domain.Value{}
	}
	s.Entry.Values[p.Name] = v
	s.Entry.ParameterID = 0
	reply, err := m.advance(ctx, s, StateEntrySelectParam)
	if err != nil {
		return nil, err
	}
	reply.Text = fmt.Sprintf("%s = %s\n%s", p.Name, v, reply.Text)
	return reply, nil
}

// entryFinish stores the collected values. With nothing collected the
// session is kept so the user can still enter values.
func (m *Machine) entryFinish(ctx context.Context, s *Session) (*Reply, error) {
	if s.Entry.ExperimentID == 0 || len(s.Entry.Values) == 0 {
		cause := &domain.StateError{State: string(s.State), Action: string(ActionFinish), Reason: "no values entered yet"}
		return m.reject(ctx, s, cause)
	}
	entry, err := m.cfg.Entries.UpsertDailyEntry(ctx, s.UserID, s.Entry.ExperimentID, s.Entry.Date, s.Entry.Values)
	if err != nil {
		return nil, fmt.Errorf("upsert entry: %w", err)
	}
	return m.finish(ctx, s, "completed", &Reply{
		Text:         fmt.Sprintf("Saved %d values for %s.", len(entry.Values), entry.Date),
		ExperimentID: entry.ExperimentID,
		Entry:        entry,
	})
}

// --- delete experiment ---

func (m *Machine) deleteSelect(ctx context.Context, s *Session, a Action) (*Reply, error) {
	id, ok := parseID(experimentPrefix, a.Input)
	if !ok {
		return m.reject(ctx, s, unexpected("experiment", a.Input))
	}
	if _, err := m.ownedExperiment(ctx, s.UserID, id); err != nil {
		return m.fail(ctx, s, err)
	}
	s.Deletion.ExperimentID = id
	return m.advance(ctx, s, StateDeleteConfirm)
}

func (m *Machine) deleteConfirm(ctx context.Context, s *Session, a Action) (*Reply, error) {
	switch choice(a) {
	case PayloadYes:
		id := s.Deletion.ExperimentID
		if _, err := m.ownedExperiment(ctx, s.UserID, id); err != nil {
			return m.fail(ctx, s, err)
		}
		if err := m.cfg.Experiments.DeleteExperimentCascade(ctx, id); err != nil {
			return nil, fmt.Errorf("delete experiment: %w", err)
		}
		return m.finish(ctx, s, "completed", &Reply{Text: "Experiment deleted.", ExperimentID: id})
	case PayloadNo:
		return m.finish(ctx, s, "cancelled", &Reply{Text: "Deletion cancelled."})
	}
	return m.reject(ctx, s, unexpected("confirm", a.Input))
}

// --- analysis ---

func (m *Machine) analysisSelectExperiment(ctx context.Context, s *Session, a Action) (*Reply, error) {
	id, ok := parseID(experimentPrefix, a.Input)
	if !ok {
		return m.reject(ctx, s, unexpected("experiment", a.Input))
	}
	if _, err := m.ownedExperiment(ctx, s.UserID, id); err != nil {
		return m.fail(ctx, s, err)
	}

	if s.Flow == FlowCorrelation {
		report, err := m.cfg.Analyzer.Correlate(ctx, s.UserID, id)
		if err != nil {
			return m.fail(ctx, s, err)
		}
		return m.finish(ctx, s, "completed", &Reply{
			Text:         report.Markdown(),
			ExperimentID: id,
			Correlation:  report,
		})
	}

	params, err := m.cfg.Parameters.ListParameters(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list parameters: %w", err)
	}
	if goals, _ := domain.SplitRoles(params); len(goals) == 0 {
		return m.abort(ctx, s, &domain.InsufficientDataError{Reason: "no goal parameters"})
	}
	s.Analysis.ExperimentID = id
	return m.advance(ctx, s, StateAnalysisSelectTarget)
}

func (m *Machine) analysisSelectTarget(ctx context.Context, s *Session, a Action) (*Reply, error) {
	id, ok := parseID(parameterPrefix, a.Input)
	if !ok {
		return m.reject(ctx, s, unexpected("target", a.Input))
	}
	p, err := m.experimentParameter(ctx, s.Analysis.ExperimentID, id)
	if err != nil {
		return m.fail(ctx, s, err)
	}
	if !p.IsGoal() {
		return m.abort(ctx, s, &domain.NotFoundError{Kind: "goal parameter", ID: id})
	}
	report, err := m.cfg.Analyzer.Regress(ctx, s.UserID, s.Analysis.ExperimentID, id)
	if err != nil {
		return m.fail(ctx, s, err)
	}
	return m.finish(ctx, s, "completed", &Reply{
		Text:         report.Result.Markdown(),
		ExperimentID: s.Analysis.ExperimentID,
		Regression:   report,
	})
}
