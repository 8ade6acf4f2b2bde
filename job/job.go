package job

// Job is a unit of prioritized, resumable, step-wise work.
type Job interface {
	// Complete reports whether the job has nothing left to do.
	Complete() bool
	// BeforeFirstStep is called once, right before the first step.
	BeforeFirstStep()
	// Step performs one bounded quantum of work and must return promptly.
	Step()
	// AfterLastStep is called once, right after the job was found complete.
	AfterLastStep()
	// Priority returns the scheduling weight; <= 0 parks the job.
	Priority() float32
}

// Reprioritizer is implemented by jobs whose priority changes outside of the
// manager's control. The manager polls it before every selection and re-sorts
// its queue when any job reports a change.
type Reprioritizer interface {
	// PriorityChanged reports and clears a pending priority change.
	PriorityChanged() bool
}

// Handle is an opaque reference to a pushed job.
type Handle uint64

// Func adapts plain functions to a Job that completes after its step.
type Func struct {
	Weight float32
	Run    func()
	done   bool
}

func (f *Func) Complete() bool    { return f.done }
func (f *Func) BeforeFirstStep()  {}
func (f *Func) AfterLastStep()    {}
func (f *Func) Priority() float32 { return f.Weight }
func (f *Func) Step() {
	if f.Run != nil {
		f.Run()
	}
	f.done = true
}
