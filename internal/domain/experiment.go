// Package domain contains the core business entities and interfaces.
package domain

import (
	"context"
	"time"
)

// Role marks whether a parameter is an outcome or an input.
type Role string

// Parameter roles.
const (
	RoleGoal        Role = "goal"
	RoleIndependent Role = "independent"
)

// ParamType is the closed set of value types a parameter can hold.
type ParamType string

// Parameter types.
const (
	TypeBoolean ParamType = "boolean"
	TypeClass   ParamType = "class"
	TypeNumeric ParamType = "numeric"
)

// Experiment is a named set of tracked variables owned by one user.
type Experiment struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Parameter is one tracked variable of an experiment. ClassMin and ClassMax
// are set only for class parameters.
type Parameter struct {
	ID           int64     `json:"id"`
	ExperimentID int64     `json:"experimentId"`
	Name         string    `json:"name"`
	Role         Role      `json:"role"`
	Type         ParamType `json:"type"`
	ClassMin     *int      `json:"classMin,omitempty"`
	ClassMax     *int      `json:"classMax,omitempty"`
}

// IsGoal reports whether the parameter is an outcome variable.
func (p Parameter) IsGoal() bool { return p.Role == RoleGoal }

// SplitRoles partitions params into goals and independents, keeping order.
func SplitRoles(params []Parameter) (goals, independents []Parameter) {
	for _, p := range params {
		if p.IsGoal() {
			goals = append(goals, p)
		} else {
			independents = append(independents, p)
		}
	}
	return goals, independents
}

// FindParameter returns the parameter with the given name, if any.
func FindParameter(params []Parameter, name string) (Parameter, bool) {
	for _, p := range params {
		if p.Name == name {
			return p, true
		}
	}
	return Parameter{}, false
}

// ExperimentRepository is the port for experiment persistence. GetExperiment
// returns nil, nil when the experiment does not exist.
type ExperimentRepository interface {
	CreateExperiment(ctx context.Context, userID int64, name string) (*Experiment, error)
	ListExperiments(ctx context.Context, userID int64) ([]Experiment, error)
	GetExperiment(ctx context.Context, id int64) (*Experiment, error)
	DeleteExperimentCascade(ctx context.Context, id int64) error
}

// ParameterRepository is the port for parameter persistence. Parameters are
// listed in creation order.
type ParameterRepository interface {
	CreateParameter(ctx context.Context, p Parameter) (*Parameter, error)
	ListParameters(ctx context.Context, experimentID int64) ([]Parameter, error)
	GetParameter(ctx context.Context, id int64) (*Parameter, error)
}
