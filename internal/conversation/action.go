package conversation

import (
	"strconv"
	"strings"

	"github.com/MikhalGarbuz/analyze-your-life/internal/analysis"
	"github.com/MikhalGarbuz/analyze-your-life/internal/domain"
)

// ActionKind is the kind of user action.
type ActionKind string

// Action kinds. Input carries both typed text and button payloads.
const (
	ActionStart  ActionKind = "start"
	ActionInput  ActionKind = "input"
	ActionFinish ActionKind = "finish"
	ActionCancel ActionKind = "cancel"
)

// Action is one user turn.
type Action struct {
	Kind  ActionKind `json:"kind"`
	Flow  Flow       `json:"flow,omitempty"`
	Input string     `json:"input,omitempty"`
	// ExperimentID scopes a define-parameter flow.
	ExperimentID int64 `json:"experimentId,omitempty"`
	// AskDate makes the enter-data flow ask for a date instead of using today.
	AskDate bool `json:"askDate,omitempty"`
}

// Start begins flow, replacing any session in progress.
func Start(flow Flow) Action { return Action{Kind: ActionStart, Flow: flow} }

// Text is free text typed by the user.
func Text(raw string) Action { return Action{Kind: ActionInput, Input: raw} }

// Choose is a button tap carrying payload.
func Choose(payload string) Action { return Action{Kind: ActionInput, Input: payload} }

// Finish ends data entry and stores the collected values.
func Finish() Action { return Action{Kind: ActionFinish} }

// Cancel discards the session in progress.
func Cancel() Action { return Action{Kind: ActionCancel} }

// Button payloads.
const (
	PayloadCreate            = "create"
	PayloadCancel            = "cancel"
	PayloadConfirm           = "confirm"
	PayloadConfirmAddAnother = "confirm_add_another"
	PayloadYes               = "yes"
	PayloadNo                = "no"
	PayloadFinish            = "finish"
	PayloadToday             = "today"
	PayloadYesterday         = "yesterday"

	experimentPrefix = "exp:"
	parameterPrefix  = "param:"
	rolePrefix       = "role:"
	typePrefix       = "type:"
	startPrefix      = "start:"
)

// ActionFromPayload maps a button payload to an action. Payloads of the form
// "start:<flow>[:<experiment id>]" start a flow; "finish" and "cancel" map
// to their actions; everything else is input.
func ActionFromPayload(payload string) Action {
	switch {
	case strings.HasPrefix(payload, startPrefix):
		parts := strings.SplitN(strings.TrimPrefix(payload, startPrefix), ":", 2)
		a := Start(Flow(parts[0]))
		if len(parts) == 2 {
			a.ExperimentID, _ = strconv.ParseInt(parts[1], 10, 64)
		}
		return a
	case payload == PayloadFinish:
		return Finish()
	case payload == PayloadCancel:
		return Cancel()
	}
	return Choose(payload)
}

func startPayload(flow Flow, experimentID int64) string {
	return startPrefix + string(flow) + ":" + strconv.FormatInt(experimentID, 10)
}

func experimentPayload(id int64) string { return experimentPrefix + strconv.FormatInt(id, 10) }

func parameterPayload(id int64) string { return parameterPrefix + strconv.FormatInt(id, 10) }

// parseID reads an id from "<prefix><id>" or a bare id.
func parseID(prefix, input string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(input), prefix), 10, 64)
	return id, err == nil && id > 0
}

// Choice is a button offered to the user.
type Choice struct {
	Label   string `json:"label"`
	Payload string `json:"payload"`
}

// Reply is the response to an action.
type Reply struct {
	Flow    Flow     `json:"flow,omitempty"`
	State   State    `json:"state"`
	Text    string   `json:"text"`
	Choices []Choice `json:"choices,omitempty"`
	Done    bool     `json:"done"`

	ExperimentID int64                       `json:"experimentId,omitempty"`
	Parameter    *domain.Parameter           `json:"parameter,omitempty"`
	Entry        *domain.DailyEntry          `json:"entry,omitempty"`
	Correlation  *analysis.CorrelationReport `json:"correlation,omitempty"`
	Regression   *analysis.RegressionReport  `json:"regression,omitempty"`
}
