package pipeline

// Stage names the steps of one document's processing, in execution order.
type Stage string

const (
	StageExtract   Stage = "extract"
	StageReextract Stage = "reextract"
	StageParse     Stage = "parse"
	StagePersist   Stage = "persist"
)

// Outcome is the status of a single stage.
type Outcome string

const (
	OutcomePending  Outcome = "pending"
	OutcomeActive   Outcome = "active"
	OutcomeComplete Outcome = "complete"
	OutcomeError    Outcome = "error"
	OutcomeSkipped  Outcome = "skipped"
)

var stageOrder = []Stage{StageExtract, StageReextract, StageParse, StagePersist}

// Trace is the explicit per-stage state machine threaded through the
// pipeline. Stages start pending and move through active to exactly one of
// complete, error or skipped.
type Trace struct {
	statuses map[Stage]Outcome
}

func NewTrace() *Trace {
	t := &Trace{statuses: make(map[Stage]Outcome, len(stageOrder))}
	for _, s := range stageOrder {
		t.statuses[s] = OutcomePending
	}
	return t
}

func (t *Trace) Begin(s Stage)    { t.statuses[s] = OutcomeActive }
func (t *Trace) Complete(s Stage) { t.statuses[s] = OutcomeComplete }
func (t *Trace) Fail(s Stage)     { t.statuses[s] = OutcomeError }
func (t *Trace) Skip(s Stage)     { t.statuses[s] = OutcomeSkipped }

func (t *Trace) Status(s Stage) Outcome { return t.statuses[s] }

// Map returns a copy of the stage statuses for reporting.
func (t *Trace) Map() map[Stage]Outcome {
	out := make(map[Stage]Outcome, len(t.statuses))
	for k, v := range t.statuses {
		out[k] = v
	}
	return out
}
