package lifecycle

// ManagerEvent describes the final outcome of one manager's initialization,
// emitted exactly once per manager regardless of retry count.
type ManagerEvent struct {
	Manager  string
	Category Category
	Priority Priority
	Success  bool
	Attempts int
	Err      error
}

// Events collects lifecycle callbacks. Registration is expected before
// Initialize is called; callbacks run synchronously on the orchestration
// goroutine.
type Events struct {
	phaseStarted       []func(Phase)
	phaseCompleted     []func(Phase, PhaseResult)
	managerInitialized []func(ManagerEvent)
	completed          []func(Result)
}

func NewEvents() *Events { return &Events{} }

func (e *Events) OnPhaseStarted(fn func(Phase)) {
	e.phaseStarted = append(e.phaseStarted, fn)
}

func (e *Events) OnPhaseCompleted(fn func(Phase, PhaseResult)) {
	e.phaseCompleted = append(e.phaseCompleted, fn)
}

func (e *Events) OnManagerInitialized(fn func(ManagerEvent)) {
	e.managerInitialized = append(e.managerInitialized, fn)
}

func (e *Events) OnCompleted(fn func(Result)) {
	e.completed = append(e.completed, fn)
}

func (e *Events) emitPhaseStarted(p Phase) {
	for _, fn := range e.phaseStarted {
		fn(p)
	}
}

func (e *Events) emitPhaseCompleted(p Phase, r PhaseResult) {
	for _, fn := range e.phaseCompleted {
		fn(p, r)
	}
}

func (e *Events) emitManagerInitialized(ev ManagerEvent) {
	for _, fn := range e.managerInitialized {
		fn(ev)
	}
}

func (e *Events) emitCompleted(r Result) {
	for _, fn := range e.completed {
		fn(r)
	}
}
