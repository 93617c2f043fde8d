package model

type Phase string

const (
	PhaseDiscover  Phase = "discover"
	PhaseReconcile Phase = "reconcile"
)

func ParsePhase(raw string) (Phase, error) {
	switch Phase(raw) {
	case PhaseDiscover, PhaseReconcile:
		return Phase(raw), nil
	default:
		return "", ErrUnknownPhase
	}
}

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// RunRecord is the history entry of one discovery or reconciliation pass.
type RunRecord struct {
	RunID      string           `json:"run_id"`
	Phase      Phase            `json:"phase"`
	Trigger    string           `json:"trigger"`
	Status     RunStatus        `json:"status"`
	StartedAt  string           `json:"started_at"`
	FinishedAt string           `json:"finished_at,omitempty"`
	Discover   *DiscoverResult  `json:"discover,omitempty"`
	Reconcile  *ReconcileResult `json:"reconcile,omitempty"`
	Error      string           `json:"error,omitempty"`
}

type RunListData struct {
	Items []RunRecord `json:"items"`
}
