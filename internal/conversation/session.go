// Package conversation implements the per-user guided workflows that define
// experiments and parameters, collect daily values and start analyses.
package conversation

import (
	"context"
	"time"

	"github.com/MikhalGarbuz/analyze-your-life/internal/domain"
)

// Flow identifies a workflow.
type Flow string

// Workflows.
const (
	FlowDefineExperiment Flow = "define_experiment"
	FlowDefineParameter  Flow = "define_parameter"
	FlowEnterData        Flow = "enter_data"
	FlowDeleteExperiment Flow = "delete_experiment"
	FlowCorrelation      Flow = "correlation"
	FlowRegression       Flow = "regression"
)

// State is a step within a workflow. Idle is represented by the absence of
// a session.
type State string

// Workflow states.
const (
	StateIdle State = "idle"

	StateExperimentName    State = "experiment_name"
	StateExperimentConfirm State = "experiment_confirm"

	StateParameterName     State = "parameter_name"
	StateParameterRole     State = "parameter_role"
	StateParameterType     State = "parameter_type"
	StateParameterClassMin State = "parameter_class_min"
	StateParameterClassMax State = "parameter_class_max"
	StateParameterConfirm  State = "parameter_confirm"

	StateEntryDate        State = "entry_date"
	StateEntrySelectExp   State = "entry_select_experiment"
	StateEntrySelectParam State = "entry_select_parameter"
	StateEntryWaitValue   State = "entry_wait_value"

	StateDeleteSelect  State = "delete_select"
	StateDeleteConfirm State = "delete_confirm"

	StateAnalysisSelectExp    State = "analysis_select_experiment"
	StateAnalysisSelectTarget State = "analysis_select_target"
)

// ExperimentDraft is the scratch of the define-experiment flow.
type ExperimentDraft struct {
	Name string `json:"name"`
}

// ParameterDraft is the scratch of the define-parameter flow.
type ParameterDraft struct {
	ExperimentID int64            `json:"experimentId"`
	Name         string           `json:"name"`
	Role         domain.Role      `json:"role,omitempty"`
	Type         domain.ParamType `json:"type,omitempty"`
	ClassMin     *int             `json:"classMin,omitempty"`
	ClassMax     *int             `json:"classMax,omitempty"`
}

// EntryDraft is the scratch of the enter-data flow.
type EntryDraft struct {
	Date         string                  `json:"date"`
	ExperimentID int64                   `json:"experimentId,omitempty"`
	ParameterID  int64                   `json:"parameterId,omitempty"`
	Values       map[string]domain.Value `json:"values,omitempty"`
}

// DeletionDraft is the scratch of the delete-experiment flow.
type DeletionDraft struct {
	ExperimentID int64 `json:"experimentId,omitempty"`
}

// AnalysisDraft is the scratch of the correlation and regression flows.
type AnalysisDraft struct {
	ExperimentID int64 `json:"experimentId,omitempty"`
}

// Session is the single in-progress workflow of a user. Only the draft
// matching Flow is set.
type Session struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"userId"`
	Flow      Flow      `json:"flow"`
	State     State     `json:"state"`
	UpdatedAt time.Time `json:"updatedAt"`

	Experiment *ExperimentDraft `json:"experiment,omitempty"`
	Parameter  *ParameterDraft  `json:"parameter,omitempty"`
	Entry      *EntryDraft      `json:"entry,omitempty"`
	Deletion   *DeletionDraft   `json:"deletion,omitempty"`
	Analysis   *AnalysisDraft   `json:"analysis,omitempty"`
}

// SessionStore persists sessions keyed by user id. Load returns nil, nil
// when the user has no session. Stores hand out copies: mutating a loaded
// session has no effect until it is saved.
type SessionStore interface {
	Load(ctx context.Context, userID int64) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, userID int64) error
}
