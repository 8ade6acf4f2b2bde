package parser

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/lodstream/internal/clock"
	"github.com/viant/lodstream/job"
)

var errCorrupt = errors.New("corrupt payload")

type tableFormat struct {
	table     *LodTable
	maxRange  int
	linked    uint32
	failLod   int
	parsed    [][2]int
	completed int
	nextCalls int
}

func newTableFormat(t *testing.T, maxRange int) *tableFormat {
	table, err := NewLodTable([]LodInfo{
		{Level: 0, ByteOffset: 0, ByteLength: 100, Quantity: 10},
		{Level: 1, ByteOffset: 100, ByteLength: 150, Quantity: 20},
		{Level: 2, ByteOffset: 250, ByteLength: 150, Quantity: 30},
		{Level: 3, ByteOffset: 400, ByteLength: 200, Quantity: 40},
	})
	require.NoError(t, err)
	return &tableFormat{table: table, maxRange: maxRange, failLod: -1}
}

func (f *tableFormat) HeaderParsed(data []byte, _ *Options) (Metadata, error) {
	if string(data) != "table" {
		return Metadata{}, errCorrupt
	}
	return Metadata{LinkedAsset: f.linked, Name: "table"}, nil
}

func (f *tableFormat) LodParsed(previousLod, currentLod int, data []byte, _ *Options) error {
	if currentLod == f.failLod {
		return errCorrupt
	}
	f.parsed = append(f.parsed, [2]int{previousLod, currentLod})
	return nil
}

func (f *tableFormat) Complete(currentLod int) bool { return currentLod == f.table.MaxLevel() }
func (f *tableFormat) Completed()                   { f.completed++ }
func (f *tableFormat) MaxLod() int                  { return f.table.MaxLevel() }
func (f *tableFormat) LodLowerBound(lod int) int    { return f.table.LowerBound(lod) }

func (f *tableFormat) NextLod(currentLod, requiredLod int) (int, int64, int64) {
	f.nextCalls++
	return NextLodInRange(f, nil, currentLod, requiredLod)
}

func (f *tableFormat) LodRangeFetchingBound(int, int) FetchingBound {
	return FetchingBound{MaxSize: f.maxRange}
}

func (f *tableFormat) LodRangeRequestByteRange(lower, upper int) (int64, int64) {
	return f.table.ByteRange(lower, upper)
}

func (f *tableFormat) LodQuantity(previousLod, currentLod int) int {
	return f.table.Quantity(previousLod, currentLod)
}

func container() []byte {
	return EncodeContainer(7, []byte("table"), make([]byte, 600))
}

const base = HeaderSize + 5

func TestParser_StreamsEveryLevel(t *testing.T) {
	format := newTableFormat(t, 1)
	p := New(format, WithID("mesh"), WithSource("mem://mesh"), WithRequiredLod(3), WithPriority(2))
	var lodComplete, completed int
	p.LodRequestComplete.Connect(func(*Parser) { lodComplete++ })
	p.Completed.Connect(func(*Parser) { completed++ })
	ready := false
	p.Ready.Connect(func(*Parser) { ready = true })

	assert.Equal(t, StateUnstarted, p.State())
	require.NoError(t, p.Parse(container()))
	assert.True(t, ready)
	assert.Equal(t, StateLodPending, p.State())
	assert.Equal(t, -1, p.CurrentLod())

	expected := []RequestInfo{
		{Asset: "mesh", Source: "mem://mesh", Lod: 0, Offset: base, Size: 100},
		{Asset: "mesh", Source: "mem://mesh", Lod: 1, Offset: base + 100, Size: 150},
		{Asset: "mesh", Source: "mem://mesh", Lod: 2, Offset: base + 250, Size: 150},
		{Asset: "mesh", Source: "mem://mesh", Lod: 3, Offset: base + 400, Size: 200},
	}
	var lods []int
	for i, want := range expected {
		info, err := p.LodRequestFetchingBegin()
		require.NoError(t, err, "window %d", i)
		assert.Equal(t, want, info)
		assert.Equal(t, StateLodFetching, p.State())
		assert.EqualValues(t, 0, p.Priority(), "busy parser reports no priority")
		require.NoError(t, p.LodRequestFetchingComplete(make([]byte, info.Size)))
		lods = append(lods, p.CurrentLod())
	}
	assert.Equal(t, []int{0, 1, 2, 3}, lods)
	assert.Equal(t, [][2]int{{-1, 0}, {0, 1}, {1, 2}, {2, 3}}, format.parsed)
	assert.Equal(t, 4, lodComplete)
	assert.Equal(t, 1, completed)
	assert.Equal(t, 1, format.completed)
	assert.True(t, p.Complete())
	assert.Equal(t, StateComplete, p.State())
	assert.Equal(t, 40, p.LastQuantity())

	_, err := p.LodRequestFetchingBegin()
	assert.ErrorIs(t, err, ErrNoPendingRequest)
}

func TestParser_WindowCoversRangeWithoutLimit(t *testing.T) {
	format := newTableFormat(t, 0)
	p := New(format, WithRequiredLod(2), WithPriority(1))
	require.NoError(t, p.Parse(container()))
	info, ok := p.NextLodRequestInfo()
	require.True(t, ok)
	assert.Equal(t, 2, info.Lod)
	assert.EqualValues(t, base, info.Offset)
	assert.EqualValues(t, 400, info.Size)
}

func TestParser_Priority(t *testing.T) {
	format := newTableFormat(t, 1)
	p := New(format, WithPriority(5))
	assert.EqualValues(t, 0, p.Priority(), "no header yet")
	require.NoError(t, p.Parse(container()))
	assert.EqualValues(t, 5, p.Priority())

	var changes []PriorityChange
	p.PriorityChanged.Connect(func(c PriorityChange) { changes = append(changes, c) })
	_, err := p.LodRequestFetchingBegin()
	require.NoError(t, err)
	require.NoError(t, p.LodRequestFetchingComplete(make([]byte, 100)))
	assert.Equal(t, 0, p.CurrentLod())
	assert.EqualValues(t, 0, p.Priority(), "requiredLod 0 is satisfied")
	assert.Equal(t, StateIdle, p.State())
	require.Len(t, changes, 1)
	assert.EqualValues(t, 5, changes[0].Previous)
	assert.EqualValues(t, 0, changes[0].Current)
}

func TestParser_SetPriorityEmitsAroundMutation(t *testing.T) {
	p := New(newTableFormat(t, 1), WithPriority(1))
	require.NoError(t, p.Parse(container()))
	var log []string
	p.BeforePriorityChanged.Connect(func(c PriorityChange) {
		log = append(log, "before")
		assert.EqualValues(t, 1, c.Parser.RequestedPriority())
	})
	p.PriorityChanged.Connect(func(c PriorityChange) {
		log = append(log, "after")
		assert.EqualValues(t, 3, c.Current)
	})
	p.SetPriority(3)
	assert.Equal(t, []string{"before", "after"}, log)
}

func TestParser_SetRequiredLod(t *testing.T) {
	format := newTableFormat(t, 0)
	p := New(format, WithPriority(1))
	require.NoError(t, p.Parse(container()))
	calls := format.nextCalls

	p.SetRequiredLod(0)
	assert.Equal(t, calls, format.nextCalls, "unchanged value does not recompute")

	p.SetRequiredLod(1)
	assert.Equal(t, calls+1, format.nextCalls)
	info, _ := p.NextLodRequestInfo()
	assert.Equal(t, 1, info.Lod)

	inFlight, err := p.LodRequestFetchingBegin()
	require.NoError(t, err)
	p.SetRequiredLod(3)
	assert.Equal(t, calls+1, format.nextCalls, "in-flight window is never recomputed")
	info, _ = p.NextLodRequestInfo()
	assert.Equal(t, inFlight, info)

	require.NoError(t, p.LodRequestFetchingComplete(make([]byte, inFlight.Size)))
	assert.Equal(t, 1, p.CurrentLod())
	info, ok := p.NextLodRequestInfo()
	require.True(t, ok)
	assert.Equal(t, 3, info.Lod)
	assert.EqualValues(t, base+250, info.Offset)
}

func TestParser_FetchError(t *testing.T) {
	format := newTableFormat(t, 1)
	p := New(format, WithID("a"), WithRequiredLod(3), WithPriority(1))
	require.NoError(t, p.Parse(container()))
	var got []*Error
	p.Error.Connect(func(e *Error) { got = append(got, e) })

	before, err := p.LodRequestFetchingBegin()
	require.NoError(t, err)
	p.LodRequestFetchingError(errors.New("connection reset"))
	require.Len(t, got, 1)
	assert.True(t, IsFetch(got[0]))
	assert.Equal(t, "a", got[0].Asset)
	assert.Equal(t, -1, p.CurrentLod(), "no state advance")
	after, ok := p.NextLodRequestInfo()
	require.True(t, ok)
	assert.Equal(t, before, after, "window kept")
	assert.Equal(t, StateLodPending, p.State())

	p.LodRequestFetchingError(errors.New("late"))
	assert.Len(t, got, 1, "errors outside a request are ignored")
}

func TestParser_Aborted(t *testing.T) {
	p := New(newTableFormat(t, 1), WithRequiredLod(1), WithPriority(1))
	require.NoError(t, p.Parse(container()))
	errorsSeen := 0
	p.Error.Connect(func(*Error) { errorsSeen++ })
	_, err := p.LodRequestFetchingBegin()
	require.NoError(t, err)
	p.LodRequestFetchingAborted()
	assert.Equal(t, 0, errorsSeen)
	assert.False(t, p.Busy())
	assert.EqualValues(t, 1, p.Priority())
	assert.ErrorIs(t, p.LodRequestFetchingComplete(make([]byte, 100)), ErrNotBusy)
}

func TestParser_FormatErrorOnPayload(t *testing.T) {
	format := newTableFormat(t, 1)
	format.failLod = 1
	p := New(format, WithRequiredLod(3), WithPriority(1))
	require.NoError(t, p.Parse(container()))
	var got []*Error
	p.Error.Connect(func(e *Error) { got = append(got, e) })

	info, _ := p.LodRequestFetchingBegin()
	require.NoError(t, p.LodRequestFetchingComplete(make([]byte, info.Size)))
	info, _ = p.LodRequestFetchingBegin()
	err := p.LodRequestFetchingComplete(make([]byte, info.Size))
	require.Error(t, err)
	assert.ErrorIs(t, err, errCorrupt)
	require.Len(t, got, 1)
	assert.True(t, IsFormat(got[0]))
	assert.Equal(t, 0, p.CurrentLod())
	assert.False(t, p.Busy())
}

func TestParser_ShortPayload(t *testing.T) {
	p := New(newTableFormat(t, 1), WithPriority(1))
	require.NoError(t, p.Parse(container()))
	_, err := p.LodRequestFetchingBegin()
	require.NoError(t, err)
	err = p.LodRequestFetchingComplete(make([]byte, 10))
	assert.ErrorIs(t, err, ErrShortPayload)
	assert.True(t, IsFetch(err))
	assert.Equal(t, -1, p.CurrentLod())
}

func TestParser_HeaderErrors(t *testing.T) {
	valid := container()
	badVersion := append([]byte{}, valid...)
	badVersion[4] = 9
	testCases := []struct {
		description string
		data        []byte
		expect      error
	}{
		{description: "too short", data: valid[:5], expect: ErrHeaderTooShort},
		{description: "bad magic", data: append([]byte("XXXX"), valid[4:]...), expect: ErrBadMagic},
		{description: "bad version", data: badVersion, expect: ErrUnsupportedVersion},
		{description: "truncated format header", data: valid[:HeaderSize+2], expect: ErrHeaderTooShort},
		{description: "corrupt format header", data: EncodeContainer(7, []byte("other"), nil), expect: errCorrupt},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			p := New(newTableFormat(t, 1))
			var got *Error
			p.Error.Connect(func(e *Error) { got = e })
			err := p.Parse(testCase.data)
			assert.ErrorIs(t, err, testCase.expect)
			require.NotNil(t, got)
			assert.True(t, IsFormat(got))
			assert.False(t, p.HeaderRead())
		})
	}
}

func TestParser_LinkedAsset(t *testing.T) {
	format := newTableFormat(t, 1)
	format.linked = 4
	p := New(format, WithPriority(1), WithResolver(func(id uint32) (string, int64, error) {
		assert.EqualValues(t, 4, id)
		return "mem://blobs", 1000, nil
	}))
	require.NoError(t, p.Parse(container()))
	info, ok := p.NextLodRequestInfo()
	require.True(t, ok)
	assert.Equal(t, "mem://blobs", info.Source)
	assert.EqualValues(t, 1000, info.Offset)

	unresolved := New(format)
	assert.ErrorIs(t, unresolved.Parse(container()), ErrUnresolvedAsset)
}

func TestParser_TimeSliced(t *testing.T) {
	stepper := clock.NewStepper(time.Unix(0, 0), time.Microsecond)
	manager, err := job.New(job.WithConfig(job.Config{LoadingFramerate: 30, MinStepsPerTick: 1}), job.WithClock(stepper.Now))
	require.NoError(t, err)
	format := newTableFormat(t, 1)
	p := New(format, WithPriority(1), WithMode(TimeSliced(manager, 0)))
	require.NoError(t, p.Parse(container()))
	lodComplete := 0
	p.LodRequestComplete.Connect(func(*Parser) { lodComplete++ })

	info, err := p.LodRequestFetchingBegin()
	require.NoError(t, err)
	require.NoError(t, p.LodRequestFetchingComplete(make([]byte, info.Size)))
	assert.Equal(t, StateLodParsing, p.State())
	assert.Equal(t, -1, p.CurrentLod())
	assert.Equal(t, 0, lodComplete)
	assert.Equal(t, 1, manager.Len())

	manager.End()
	assert.Equal(t, 0, p.CurrentLod())
	assert.Equal(t, 1, lodComplete)
	assert.Equal(t, 0, manager.Len())
	assert.False(t, p.Complete())
	assert.Equal(t, StateIdle, p.State())
}

func TestParser_Dispose(t *testing.T) {
	p := New(newTableFormat(t, 1), WithPriority(1))
	require.NoError(t, p.Parse(container()))
	called := false
	p.Error.Connect(func(*Error) { called = true })
	_, err := p.LodRequestFetchingBegin()
	require.NoError(t, err)
	p.Dispose()
	p.LodRequestFetchingError(errors.New("late"))
	assert.False(t, called)
	assert.Equal(t, StateDisposed, p.State())
	assert.ErrorIs(t, p.LodRequestFetchingComplete([]byte{1}), ErrDisposed)
	assert.ErrorIs(t, p.Parse(container()), ErrDisposed)
}
