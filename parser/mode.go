package parser

import "github.com/viant/lodstream/job"

// DefaultParsePriority is the job priority of time-sliced LOD parsing.
const DefaultParsePriority float32 = 1

// Mode selects how a fetched LOD payload is parsed: inline, within the
// completion callback, or time-sliced as a job on a job.Manager.
type Mode struct {
	manager  *job.Manager
	priority float32
}

// Inline parses payloads inside LodRequestFetchingComplete.
func Inline() Mode { return Mode{} }

// TimeSliced parses payloads as a job pushed onto manager. A nil manager
// falls back to inline parsing; a priority <= 0 uses DefaultParsePriority.
func TimeSliced(manager *job.Manager, priority float32) Mode {
	if priority <= 0 {
		priority = DefaultParsePriority
	}
	return Mode{manager: manager, priority: priority}
}

// IsTimeSliced reports whether payloads are parsed by a job.
func (m Mode) IsTimeSliced() bool { return m.manager != nil }

// parseJob parses a single payload in one step, then resumes the parser.
type parseJob struct {
	parser   *Parser
	data     []byte
	priority float32
	done     bool
	err      error
}

func (j *parseJob) Complete() bool    { return j.done }
func (j *parseJob) BeforeFirstStep()  {}
func (j *parseJob) Priority() float32 { return j.priority }

func (j *parseJob) Step() {
	j.err = j.parser.parseLod(j.data)
	j.data = nil
	j.done = true
}

func (j *parseJob) AfterLastStep() {
	j.parser.parseHandle = 0
	_ = j.parser.finishLod(j.err)
}
