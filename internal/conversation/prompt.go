package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/MikhalGarbuz/analyze-your-life/internal/domain"
)

// prompt builds the message for the session's current state.
func (m *Machine) prompt(ctx context.Context, s *Session) (*Reply, error) {
	r := &Reply{Flow: s.Flow, State: s.State}

	switch s.State {
	case StateExperimentName:
		r.Text = "Enter a name for the new experiment."

	case StateExperimentConfirm:
		r.Text = fmt.Sprintf("Create experiment %q?", s.Experiment.Name)
		r.Choices = []Choice{{"Create", PayloadCreate}, {"Cancel", PayloadCancel}}

	case StateParameterName:
		r.Text = "Enter a name for the new parameter."
		r.ExperimentID = s.Parameter.ExperimentID

	case StateParameterRole:
		r.Text = fmt.Sprintf("Is %q a goal or an independent parameter?", s.Parameter.Name)
		r.Choices = []Choice{
			{"Goal", rolePrefix + string(domain.RoleGoal)},
			{"Independent", rolePrefix + string(domain.RoleIndependent)},
		}

	case StateParameterType:
		r.Text = fmt.Sprintf("Choose the type of %q.", s.Parameter.Name)
		r.Choices = []Choice{
			{"Boolean (+/-)", typePrefix + string(domain.TypeBoolean)},
			{"Class (integer range)", typePrefix + string(domain.TypeClass)},
			{"Numeric", typePrefix + string(domain.TypeNumeric)},
		}

	case StateParameterClassMin:
		r.Text = "Enter the minimum class value."

	case StateParameterClassMax:
		r.Text = fmt.Sprintf("Enter the maximum class value (at least %d).", *s.Parameter.ClassMin)

	case StateParameterConfirm:
		d := s.Parameter
		desc := fmt.Sprintf("%s: %s, %s", d.Name, d.Role, d.Type)
		if d.Type == domain.TypeClass {
			desc += fmt.Sprintf(" %d–%d", *d.ClassMin, *d.ClassMax)
		}
		r.Text = "Save parameter " + desc + "?"
		r.Choices = []Choice{
			{"Confirm", PayloadConfirm},
			{"Confirm and add another", PayloadConfirmAddAnother},
			{"Cancel", PayloadCancel},
		}

	case StateEntryDate:
		r.Text = "Enter the date as YYYY-MM-DD."
		r.Choices = []Choice{{"Today", PayloadToday}, {"Yesterday", PayloadYesterday}}

	case StateEntrySelectExp, StateDeleteSelect, StateAnalysisSelectExp:
		choices, err := m.experimentChoices(ctx, s.UserID)
		if err != nil {
			return nil, err
		}
		r.Choices = choices
		switch s.State {
		case StateEntrySelectExp:
			r.Text = fmt.Sprintf("Entering data for %s. Choose an experiment.", s.Entry.Date)
		case StateDeleteSelect:
			r.Text = "Choose the experiment to delete."
		default:
			r.Text = "Choose an experiment to analyze."
		}

	case StateEntrySelectParam:
		params, err := m.cfg.Parameters.ListParameters(ctx, s.Entry.ExperimentID)
		if err != nil {
			return nil, fmt.Errorf("list parameters: %w", err)
		}
		for _, p := range params {
			mark := "❓"
			if _, ok := s.Entry.Values[p.Name]; ok {
				mark = "✅"
			}
			r.Choices = append(r.Choices, Choice{Label: mark + " " + p.Name, Payload: parameterPayload(p.ID)})
		}
		r.Choices = append(r.Choices, Choice{Label: "Finish", Payload: PayloadFinish})
		r.Text = fmt.Sprintf("Choose a parameter to fill in for %s, or finish.", s.Entry.Date)
		r.ExperimentID = s.Entry.ExperimentID

	case StateEntryWaitValue:
		p, err := m.experimentParameter(ctx, s.Entry.ExperimentID, s.Entry.ParameterID)
		if err != nil {
			return nil, err
		}
		r.Text = valuePrompt(*p)

	case StateDeleteConfirm:
		exp, err := m.ownedExperiment(ctx, s.UserID, s.Deletion.ExperimentID)
		if err != nil {
			return nil, err
		}
		r.Text = fmt.Sprintf("Delete %q with all its parameters and entries?", exp.Name)
		r.Choices = []Choice{{"Yes", PayloadYes}, {"No", PayloadNo}}

	case StateAnalysisSelectTarget:
		params, err := m.cfg.Parameters.ListParameters(ctx, s.Analysis.ExperimentID)
		if err != nil {
			return nil, fmt.Errorf("list parameters: %w", err)
		}
		goals, _ := domain.SplitRoles(params)
		for _, g := range goals {
			r.Choices = append(r.Choices, Choice{Label: g.Name, Payload: parameterPayload(g.ID)})
		}
		r.Text = "Choose the target variable."

	default:
		return nil, fmt.Errorf("no prompt for state %q", s.State)
	}
	return r, nil
}

func valuePrompt(p domain.Parameter) string {
	switch p.Type {
	case domain.TypeBoolean:
		return fmt.Sprintf("%s: send + or -.", p.Name)
	case domain.TypeClass:
		return fmt.Sprintf("%s: send an integer from %d to %d.", p.Name, *p.ClassMin, *p.ClassMax)
	default:
		return fmt.Sprintf("%s: send a number.", p.Name)
	}
}

func completenessHint(params []domain.Parameter) string {
	goals, independents := domain.SplitRoles(params)
	var missing []string
	if len(goals) == 0 {
		missing = append(missing, "a goal")
	}
	if len(independents) == 0 {
		missing = append(missing, "an independent")
	}
	if len(missing) == 0 {
		return "The experiment has goal and independent parameters and is ready for data."
	}
	return "Add " + strings.Join(missing, " and ") + " parameter before analyzing."
}
