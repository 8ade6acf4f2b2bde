package scheduler

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/lodstream/fetch"
	"github.com/viant/lodstream/fetch/memory"
	"github.com/viant/lodstream/internal/clock"
	"github.com/viant/lodstream/job"
	"github.com/viant/lodstream/parser"
)

// tableFormat streams four levels spanning [0,100) [100,250) [250,400) [400,600),
// one level per request.
type tableFormat struct {
	table  *parser.LodTable
	failAt int
}

func newTableFormat(t *testing.T) *tableFormat {
	table, err := parser.NewLodTable([]parser.LodInfo{
		{Level: 0, ByteOffset: 0, ByteLength: 100, Quantity: 1},
		{Level: 1, ByteOffset: 100, ByteLength: 150, Quantity: 2},
		{Level: 2, ByteOffset: 250, ByteLength: 150, Quantity: 3},
		{Level: 3, ByteOffset: 400, ByteLength: 200, Quantity: 4},
	})
	require.NoError(t, err)
	return &tableFormat{table: table, failAt: -1}
}

func (f *tableFormat) HeaderParsed([]byte, *parser.Options) (parser.Metadata, error) {
	return parser.Metadata{}, nil
}

func (f *tableFormat) LodParsed(_, currentLod int, _ []byte, _ *parser.Options) error {
	if currentLod == f.failAt {
		return errors.New("corrupt level")
	}
	return nil
}

func (f *tableFormat) Complete(currentLod int) bool { return currentLod == f.table.MaxLevel() }
func (f *tableFormat) Completed()                   {}
func (f *tableFormat) MaxLod() int                  { return f.table.MaxLevel() }
func (f *tableFormat) LodLowerBound(lod int) int    { return f.table.LowerBound(lod) }

func (f *tableFormat) NextLod(currentLod, requiredLod int) (int, int64, int64) {
	return parser.NextLodInRange(f, nil, currentLod, requiredLod)
}

func (f *tableFormat) LodRangeFetchingBound(int, int) parser.FetchingBound {
	return parser.FetchingBound{MaxSize: 1}
}

func (f *tableFormat) LodRangeRequestByteRange(lower, upper int) (int64, int64) {
	return f.table.ByteRange(lower, upper)
}

func (f *tableFormat) LodQuantity(previousLod, currentLod int) int {
	return f.table.Quantity(previousLod, currentLod)
}

const base = parser.HeaderSize

var container = parser.EncodeContainer(1, nil, make([]byte, 600))

type fixture struct {
	t         *testing.T
	fetcher   *memory.Fetcher
	scheduler *Scheduler
	active    int
	inactive  int
}

func newFixture(t *testing.T, config Config, options ...memory.Option) *fixture {
	ret := &fixture{t: t, fetcher: memory.New(options...)}
	scheduler, err := New(ret.fetcher, WithConfig(config))
	require.NoError(t, err)
	scheduler.Active.Connect(func(*Scheduler) { ret.active++ })
	scheduler.Inactive.Connect(func(*Scheduler) { ret.inactive++ })
	ret.scheduler = scheduler
	return ret
}

func (f *fixture) add(id string, priority float32, requiredLod int) *parser.Parser {
	return f.addFormat(id, priority, requiredLod, newTableFormat(f.t))
}

func (f *fixture) addFormat(id string, priority float32, requiredLod int, format parser.Format) *parser.Parser {
	source := "mem://" + id
	f.fetcher.Put(source, container)
	p := parser.New(format, parser.WithID(id), parser.WithSource(source),
		parser.WithPriority(priority), parser.WithRequiredLod(requiredLod))
	require.NoError(f.t, p.Parse(container))
	require.NoError(f.t, f.scheduler.AddParser(p))
	return p
}

func config(maxActive int, marshal bool) Config {
	ret := DefaultConfig()
	ret.MaxNumActiveParsers = maxActive
	ret.MarshalResults = marshal
	return ret
}

func TestScheduler_StreamsSingleParser(t *testing.T) {
	f := newFixture(t, config(1, false), memory.WithDeferred())
	p := f.add("mesh", 1, 3)

	var lods []int
	for i := 0; i < 4; i++ {
		f.scheduler.Step()
		pending := f.fetcher.Pending()
		require.Len(t, pending, 1, "window %d", i)
		assert.Equal(t, 1, f.scheduler.NumActiveParsers())
		assert.Equal(t, 0, f.scheduler.NumPendingParsers())
		pending[0].Complete()
		lods = append(lods, p.CurrentLod())
		if i < 3 {
			assert.Equal(t, 1, f.scheduler.NumPendingParsers(), "entry returns to pending")
		}
	}
	assert.Equal(t, []int{0, 1, 2, 3}, lods)
	assert.True(t, p.Complete())
	assert.True(t, f.scheduler.Complete())
	assert.Equal(t, []fetch.Request{
		{Source: "mem://mesh", Offset: base, Size: 100},
		{Source: "mem://mesh", Offset: base + 100, Size: 150},
		{Source: "mem://mesh", Offset: base + 250, Size: 150},
		{Source: "mem://mesh", Offset: base + 400, Size: 200},
	}, f.fetcher.History())

	stats := f.scheduler.Stats()
	assert.Equal(t, 4, stats.Requests)
	assert.Equal(t, 4, stats.Completed)
	assert.Equal(t, 4, stats.Lods)
	assert.Equal(t, 1, stats.Parsers)
	assert.Equal(t, 10, stats.Primitives)
	assert.EqualValues(t, 600, stats.Bytes)
	assert.Equal(t, 0, stats.Active)
}

func TestScheduler_MaxActiveParsers(t *testing.T) {
	f := newFixture(t, config(2, false), memory.WithDeferred())
	for i := 1; i <= 5; i++ {
		f.add(fmt.Sprintf("p%d", i), float32(i), 3)
	}
	for i := 0; i < 3; i++ {
		f.scheduler.Step()
		assert.LessOrEqual(t, f.scheduler.NumActiveParsers(), 2)
	}
	assert.Len(t, f.fetcher.Pending(), 2)
	var sources []string
	for _, request := range f.fetcher.History() {
		sources = append(sources, request.Source)
	}
	assert.Equal(t, []string{"mem://p5", "mem://p4"}, sources)
	assert.EqualValues(t, 0, f.scheduler.Priority(), "saturated")

	f.fetcher.Pending()[0].Complete()
	assert.EqualValues(t, 10, f.scheduler.Priority())
	f.scheduler.Step()
	assert.Equal(t, 2, f.scheduler.NumActiveParsers())
	assert.Equal(t, "mem://p5", f.fetcher.History()[2].Source, "p5 still outranks the rest")
}

func TestScheduler_ActiveInactiveEdges(t *testing.T) {
	f := newFixture(t, config(3, false), memory.WithDeferred())
	for _, id := range []string{"a", "b", "c"} {
		f.add(id, 1, 3)
	}
	f.scheduler.Step()
	assert.Equal(t, 3, f.scheduler.NumActiveParsers())
	assert.Equal(t, 1, f.active)
	assert.Equal(t, 0, f.inactive)

	pending := f.fetcher.Pending()
	pending[0].Complete()
	pending[1].Complete()
	assert.Equal(t, 1, f.active)
	assert.Equal(t, 0, f.inactive, "1 of 3 still active")
	f.scheduler.Step()
	assert.Equal(t, 1, f.active, "2 -> 3 is not an edge")

	f.fetcher.Flush()
	assert.Equal(t, 1, f.inactive)
	f.scheduler.Step()
	assert.Equal(t, 2, f.active)
}

func TestScheduler_SynchronousCompletion(t *testing.T) {
	f := newFixture(t, config(1, false))
	p := f.add("mesh", 1, 3)
	for i := 0; i < 4; i++ {
		f.scheduler.Step()
		assert.Equal(t, i, p.CurrentLod())
		assert.Equal(t, 0, f.scheduler.NumActiveParsers())
	}
	assert.True(t, f.scheduler.Complete())
	assert.Equal(t, 4, f.active)
	assert.Equal(t, 4, f.inactive)
}

func TestScheduler_MarshalResults(t *testing.T) {
	f := newFixture(t, config(1, true))
	p := f.add("mesh", 1, 3)

	f.scheduler.Step()
	assert.Equal(t, -1, p.CurrentLod(), "result is queued, not applied")
	assert.Equal(t, 1, f.scheduler.NumActiveParsers())
	assert.EqualValues(t, 10, f.scheduler.Priority(), "queued results keep the scheduler runnable")

	f.scheduler.Step()
	assert.Equal(t, 0, p.CurrentLod())
	assert.Len(t, f.fetcher.History(), 2, "next window issued in the same step")

	for i := 0; i < 10 && !f.scheduler.Complete(); i++ {
		f.scheduler.Step()
	}
	assert.True(t, p.Complete())
	assert.True(t, f.scheduler.Complete())
}

func TestScheduler_RemoveParserInFlight(t *testing.T) {
	for _, marshal := range []bool{false, true} {
		t.Run(fmt.Sprintf("marshal=%v", marshal), func(t *testing.T) {
			f := newFixture(t, config(1, marshal), memory.WithDeferred())
			p := f.add("mesh", 1, 3)
			signals := 0
			p.LodRequestComplete.Connect(func(*parser.Parser) { signals++ })
			p.Error.Connect(func(*parser.Error) { signals++ })

			f.scheduler.Step()
			require.Len(t, f.fetcher.Pending(), 1)
			assert.True(t, f.scheduler.RemoveParser(p))
			assert.False(t, f.scheduler.RemoveParser(p))
			assert.False(t, p.Busy(), "request handed back as aborted")
			assert.Equal(t, 1, f.inactive)
			assert.True(t, f.scheduler.Complete())

			f.fetcher.Pending()[0].Complete()
			f.scheduler.Step()
			assert.Equal(t, -1, p.CurrentLod())
			assert.Equal(t, 0, signals)
			assert.Equal(t, 0, f.scheduler.NumActiveParsers())
			assert.Equal(t, 0, f.scheduler.NumPendingParsers())
			assert.Equal(t, 1, f.scheduler.Stats().Aborted)
		})
	}
}

func TestScheduler_FetchErrorRemovesEntry(t *testing.T) {
	f := newFixture(t, config(1, false))
	p := f.add("mesh", 1, 3)
	f.fetcher.FailWith("mem://mesh", errors.New("connection reset"))
	var got *parser.Error
	p.Error.Connect(func(err *parser.Error) { got = err })

	f.scheduler.Step()
	require.NotNil(t, got)
	assert.True(t, parser.IsFetch(got))
	assert.True(t, f.scheduler.Complete())
	assert.False(t, f.scheduler.Contains(p))
	assert.Equal(t, 1, f.scheduler.Stats().Failed)
	assert.Equal(t, -1, p.CurrentLod())
}

func TestScheduler_FormatErrorRemovesEntry(t *testing.T) {
	f := newFixture(t, config(1, false))
	format := newTableFormat(t)
	format.failAt = 1
	p := f.addFormat("mesh", 1, 3, format)
	f.scheduler.Step()
	f.scheduler.Step()
	assert.Equal(t, 0, p.CurrentLod())
	assert.True(t, f.scheduler.Complete())
	assert.Equal(t, 2, f.active)
	assert.Equal(t, 2, f.inactive, "active set emptied when the failed entry was dropped")
}

func TestScheduler_TieBreak(t *testing.T) {
	f := newFixture(t, config(1, false), memory.WithDeferred())
	for _, id := range []string{"c", "a", "b"} {
		f.add(id, 2, 0)
	}
	var order []string
	for i := 0; i < 3; i++ {
		f.scheduler.Step()
		pending := f.fetcher.Pending()
		require.Len(t, pending, 1)
		order = append(order, pending[0].Request.Source)
		pending[0].Complete()
	}
	assert.Equal(t, []string{"mem://c", "mem://a", "mem://b"}, order, "equal priorities run in registration order")
}

func TestScheduler_PriorityChangeReorders(t *testing.T) {
	f := newFixture(t, config(1, false), memory.WithDeferred())
	low := f.add("low", 1, 3)
	f.add("high", 5, 3)
	low.SetPriority(9)
	f.scheduler.Step()
	assert.Equal(t, "mem://low", f.fetcher.History()[0].Source)
}

func TestScheduler_PauseBuffersResults(t *testing.T) {
	cfg := config(2, true)
	cfg.RequestAbortingEnabled = false
	f := newFixture(t, cfg)
	p := f.add("mesh", 1, 3)

	f.scheduler.Step()
	f.scheduler.SetPriority(0)
	assert.True(t, f.scheduler.Paused())
	assert.EqualValues(t, 0, f.scheduler.Priority())
	f.scheduler.Step()
	assert.Equal(t, -1, p.CurrentLod(), "window held back while paused")
	assert.Len(t, f.fetcher.History(), 1, "nothing issued while paused")
	assert.Equal(t, 1, f.scheduler.NumActiveParsers())

	f.scheduler.SetPriority(10)
	assert.EqualValues(t, 10, f.scheduler.Priority())
	f.scheduler.Step()
	assert.Equal(t, 0, p.CurrentLod())
	assert.Len(t, f.fetcher.History(), 2)
}

func TestScheduler_Abort(t *testing.T) {
	t.Run("paused below threshold", func(t *testing.T) {
		f := newFixture(t, config(1, false), memory.WithDeferred())
		p := f.add("mesh", 1, 3)
		f.scheduler.Step()
		call := f.fetcher.Pending()[0]
		call.Progress(0.2)
		f.scheduler.SetPriority(0)
		assert.False(t, p.Busy())
		assert.Equal(t, 1, f.scheduler.NumPendingParsers())
		assert.Equal(t, 1, f.scheduler.Stats().Aborted)
		call.Complete()
		assert.Equal(t, -1, p.CurrentLod(), "late result ignored")
	})
	t.Run("paused above threshold", func(t *testing.T) {
		f := newFixture(t, config(1, false), memory.WithDeferred())
		p := f.add("mesh", 1, 3)
		f.scheduler.Step()
		f.fetcher.Pending()[0].Progress(0.7)
		f.scheduler.SetPriority(0)
		assert.True(t, p.Busy())
		assert.Equal(t, 0, f.scheduler.Stats().Aborted)
	})
	t.Run("parser no longer wants the window", func(t *testing.T) {
		f := newFixture(t, config(1, false), memory.WithDeferred())
		p := f.add("mesh", 1, 3)
		f.scheduler.Step()
		f.fetcher.Pending()[0].Progress(0.9)
		p.SetPriority(0)
		assert.EqualValues(t, 10, f.scheduler.Priority())
		f.scheduler.Step()
		assert.False(t, p.Busy())
		assert.Equal(t, 1, f.scheduler.Stats().Aborted)
		assert.Len(t, f.fetcher.History(), 1, "parser at priority 0 is not rescheduled")
	})
	t.Run("outranked", func(t *testing.T) {
		f := newFixture(t, config(1, false), memory.WithDeferred())
		low := f.add("low", 1, 3)
		f.scheduler.Step()
		f.fetcher.Pending()[0].Progress(0.1)
		f.add("high", 5, 3)
		f.scheduler.Step()
		assert.False(t, low.Busy())
		history := f.fetcher.History()
		require.Len(t, history, 2)
		assert.Equal(t, "mem://high", history[1].Source)
		assert.Equal(t, 1, f.scheduler.NumActiveParsers())
	})
	t.Run("disabled", func(t *testing.T) {
		cfg := config(1, false)
		cfg.RequestAbortingEnabled = false
		f := newFixture(t, cfg, memory.WithDeferred())
		low := f.add("low", 1, 3)
		f.scheduler.Step()
		f.add("high", 5, 3)
		f.scheduler.Step()
		assert.True(t, low.Busy())
		assert.Len(t, f.fetcher.History(), 1)
	})
}

func TestScheduler_Health(t *testing.T) {
	f := newFixture(t, config(1, false))
	p := f.add("mesh", 1, 0)
	assert.Equal(t, Health{Pending: 1, Runnable: 1}, f.scheduler.Health())
	f.scheduler.Step()
	assert.Equal(t, 0, p.CurrentLod())
	assert.Equal(t, Health{Pending: 1, Stalled: true}, f.scheduler.Health())
	p.SetRequiredLod(1)
	assert.False(t, f.scheduler.Health().Stalled)
}

func TestScheduler_Clear(t *testing.T) {
	f := newFixture(t, config(1, false), memory.WithDeferred())
	a := f.add("a", 1, 3)
	f.add("b", 1, 3)
	f.scheduler.Step()
	f.scheduler.Clear()
	assert.True(t, f.scheduler.Complete())
	assert.False(t, a.Busy())
	assert.Equal(t, 1, f.inactive)
	assert.Equal(t, 0, f.scheduler.Stats().Requests)
}

func TestScheduler_DisposedParserIsPruned(t *testing.T) {
	f := newFixture(t, config(1, false))
	p := f.add("mesh", 1, 3)
	p.Dispose()
	assert.EqualValues(t, 10, f.scheduler.Priority())
	f.scheduler.Step()
	assert.True(t, f.scheduler.Complete())
	assert.Empty(t, f.fetcher.History())
}

func TestScheduler_AddParser(t *testing.T) {
	f := newFixture(t, config(1, false))
	p := f.add("mesh", 1, 3)
	assert.ErrorIs(t, f.scheduler.AddParser(nil), ErrNilParser)
	err := f.scheduler.AddParser(p)
	assert.ErrorIs(t, err, ErrDuplicateParser)
	assert.True(t, parser.IsContract(err))
	var contract *parser.Error
	require.ErrorAs(t, err, &contract)
	assert.Equal(t, p.ID(), contract.Asset)

	disposed := parser.New(newTableFormat(t))
	disposed.Dispose()
	assert.ErrorIs(t, f.scheduler.AddParser(disposed), ErrParserDisposed)

	done := parser.New(newTableFormat(t), parser.WithRequiredLod(3), parser.WithPriority(1))
	require.NoError(t, done.Parse(container))
	for !done.Complete() {
		info, err := done.LodRequestFetchingBegin()
		require.NoError(t, err)
		require.NoError(t, done.LodRequestFetchingComplete(make([]byte, info.Size)))
	}
	err = f.scheduler.AddParser(done)
	assert.ErrorIs(t, err, ErrParserComplete)
	assert.True(t, parser.IsContract(err))
	assert.Equal(t, 1, f.scheduler.NumPendingParsers())
}

func TestNew_Validation(t *testing.T) {
	fetcher := memory.New()
	testCases := []struct {
		description string
		fetcher     fetch.Fetcher
		options     []Option
		expect      error
	}{
		{description: "no fetcher", options: nil, expect: ErrNoFetcher},
		{description: "zero active", fetcher: fetcher, options: []Option{WithConfig(Config{Priority: 1})}, expect: ErrInvalidMaxActive},
		{description: "threshold", fetcher: fetcher, options: []Option{WithConfig(Config{MaxNumActiveParsers: 1, AbortableRequestProgressThreshold: 2})}, expect: ErrInvalidThreshold},
		{description: "no manager", fetcher: fetcher, options: []Option{WithConfig(Config{MaxNumActiveParsers: 1, UseJobBasedParsing: true})}, expect: ErrNoManager},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			_, err := New(testCase.fetcher, testCase.options...)
			assert.ErrorIs(t, err, testCase.expect)
		})
	}
}

func TestScheduler_JobManager(t *testing.T) {
	for _, jobBased := range []bool{false, true} {
		t.Run(fmt.Sprintf("jobBased=%v", jobBased), func(t *testing.T) {
			stepper := clock.NewStepper(time.Unix(0, 0), time.Microsecond)
			manager, err := job.New(job.WithConfig(job.Config{LoadingFramerate: 30, MinStepsPerTick: 1}), job.WithClock(stepper.Now))
			require.NoError(t, err)
			fetcher := memory.New()
			cfg := config(2, true)
			cfg.UseJobBasedParsing = jobBased
			scheduler, err := New(fetcher, WithConfig(cfg), WithManager(manager))
			require.NoError(t, err)

			var parsers []*parser.Parser
			for i := 0; i < 5; i++ {
				source := fmt.Sprintf("mem://%d", i)
				fetcher.Put(source, container)
				p := parser.New(newTableFormat(t), parser.WithSource(source), parser.WithPriority(float32(i+1)), parser.WithRequiredLod(3))
				require.NoError(t, p.Parse(container))
				require.NoError(t, scheduler.AddParser(p))
				assert.Equal(t, jobBased, p.Mode().IsTimeSliced())
				parsers = append(parsers, p)
			}
			manager.Push(scheduler)
			for tick := 0; tick < 10 && manager.Len() > 0; tick++ {
				manager.Update()
				manager.End()
			}
			assert.Equal(t, 0, manager.Len())
			for _, p := range parsers {
				assert.True(t, p.Complete())
			}
			assert.Equal(t, 5, scheduler.Stats().Parsers)
			assert.Equal(t, 20, scheduler.Stats().Lods)
		})
	}
}
