package remoteengine

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/accgraph/internal/arg"
	"github.com/vk/accgraph/internal/engine"
	"github.com/vk/accgraph/internal/graph"
	"github.com/vk/accgraph/internal/localengine"
	"github.com/vk/accgraph/internal/nodeid"
	"github.com/vk/accgraph/internal/ops"
	"github.com/vk/accgraph/internal/opspec"
	"github.com/vk/accgraph/internal/tensor"
	"github.com/vk/accgraph/internal/testutil"
)

var testConfig = engine.Config{BatchSize: 2, NumThreads: 1, QueueDepth: 2}

// loopback decodes requests the way a service would and serves them from an
// in-process engine.
type loopback struct {
	eng engine.Engine

	mu     sync.Mutex
	events []string
	closed bool
}

func (l *loopback) request(ctx context.Context, event, id string, payload map[string]any) (any, error) {
	l.mu.Lock()
	l.events = append(l.events, ReplyEvent(event, id))
	l.mu.Unlock()

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var rep Reply
	switch event {
	case EventBuild:
		var req BuildRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, err
		}
		g, err := req.Graph.Decode()
		if err != nil {
			return nil, err
		}
		rep.Handle, err = l.eng.Build(ctx, g, req.Config)
		fail(&rep, err)
	case EventRun:
		var req RunRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, err
		}
		rep.Outputs, err = l.eng.Run(ctx, req.Handle, req.Inputs)
		fail(&rep, err)
	default:
		return nil, errors.New("unknown event " + event)
	}
	out, err := toPayload(rep)
	return out, err
}

func fail(rep *Reply, err error) {
	if err == nil {
		return
	}
	rep.Code = engine.CodeOf(err)
	rep.Message = err.Error()
	var ee *engine.Error
	if errors.As(err, &ee) {
		rep.Op = ee.Op
		rep.Message = ee.Message
	}
}

func (l *loopback) close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
}

// silent never answers.
type silent struct{}

func (silent) request(ctx context.Context, _, _ string, _ map[string]any) (any, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (silent) close() {}

// garbled answers with a payload that is not a Reply.
type garbled struct{}

func (garbled) request(context.Context, string, string, map[string]any) (any, error) {
	return map[string]any{"code": "not a number"}, nil
}

func (garbled) close() {}

func normalizeGraph(t *testing.T) (*graph.Graph, nodeid.Node) {
	t.Helper()
	reg := nodeid.NewRegistry()
	set := ops.NewSet(reg)
	src, err := set.ExternalSource("x", "")
	require.NoError(t, err)
	norm, err := set.Normalize(src.Output(), arg.Floats(0.5, 0.5, 0.5), arg.Floats(0.5, 0.5, 0.5), ops.Args{ops.ArgScale: arg.Float(2)})
	require.NoError(t, err)
	g, err := graph.Assemble(testutil.Context(t), []*opspec.Spec{src, norm}, []nodeid.Node{norm.Output()}, reg.IsExternal)
	require.NoError(t, err)
	return g, src.Output()
}

func TestEncodeGraph_RoundTrip(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	g, _ := normalizeGraph(t)

	// --- Act ---
	w, err := EncodeGraph(g)
	require.NoError(t, err)
	raw, err := json.Marshal(w)
	require.NoError(t, err)
	var back Graph
	require.NoError(t, json.Unmarshal(raw, &back))
	decoded, err := back.Decode()

	// --- Assert ---
	require.NoError(t, err)
	require.Equal(t, g.Len(), decoded.Len())
	assert.Equal(t, g.String(), decoded.String())
	assert.Equal(t, g.Ops(), decoded.Ops())
	scale, ok := decoded.Spec(1).Arg(ops.ArgScale)
	require.True(t, ok)
	assert.Equal(t, arg.TypeFloat, scale.Type())
}

func TestEngine_BuildAndRun(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	ctx := testutil.Context(t)
	lb := &loopback{eng: localengine.New()}
	e := newEngine(lb, time.Second)
	g, x := normalizeGraph(t)
	in := tensor.Repeat(tensor.Filled([]int{2, 2, 3}, tensor.DTypeFloat32, tensor.LayoutNHWC, 1), 2)

	// --- Act ---
	h, err := e.Build(ctx, g, testConfig)
	require.NoError(t, err)
	out, err := e.Run(ctx, h, map[string]*tensor.Batch{x.Name: in})

	// --- Assert ---
	require.NoError(t, err)
	require.Len(t, out, 1)
	want := tensor.Repeat(tensor.Filled([]int{2, 2, 3}, tensor.DTypeFloat32, tensor.LayoutNHWC, 2), 2)
	assert.True(t, want.Equal(out[0], 1e-6), "got %v", out[0])
	assert.Equal(t, []string{"accgraph:build:1", "accgraph:run:2"}, lb.events)
}

func TestEngine_ServiceErrorKeepsCode(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	ctx := testutil.Context(t)
	e := newEngine(&loopback{eng: localengine.New()}, time.Second)

	// --- Act ---
	_, err := e.Run(ctx, "missing", map[string]*tensor.Batch{})

	// --- Assert ---
	require.Error(t, err)
	assert.Equal(t, engine.CodePipelineStateError, engine.CodeOf(err))
}

func TestEngine_BatchOverflowReported(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	ctx := testutil.Context(t)
	e := newEngine(&loopback{eng: localengine.New()}, time.Second)
	g, x := normalizeGraph(t)
	h, err := e.Build(ctx, g, testConfig)
	require.NoError(t, err)
	in := tensor.Repeat(tensor.Filled([]int{2, 2, 3}, tensor.DTypeFloat32, tensor.LayoutNHWC, 1), 3)

	// --- Act ---
	_, err = e.Run(ctx, h, map[string]*tensor.Batch{x.Name: in})

	// --- Assert ---
	assert.Equal(t, engine.CodeInvalidParam, engine.CodeOf(err))
}

func TestEngine_Timeout(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	e := newEngine(silent{}, 20*time.Millisecond)
	g, _ := normalizeGraph(t)

	// --- Act ---
	_, err := e.Build(testutil.Context(t), g, testConfig)

	// --- Assert ---
	require.Error(t, err)
	assert.Equal(t, engine.CodePipelineError, engine.CodeOf(err))
	assert.ErrorContains(t, err, "accgraph:build")
}

func TestEngine_MalformedReply(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	e := newEngine(garbled{}, time.Second)

	// --- Act ---
	_, err := e.Run(testutil.Context(t), "h", nil)

	// --- Assert ---
	assert.Equal(t, engine.CodeCommonError, engine.CodeOf(err))
}

func TestEngine_NilGraph(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	lb := &loopback{eng: localengine.New()}
	e := newEngine(lb, time.Second)

	// --- Act ---
	_, err := e.Build(testutil.Context(t), nil, testConfig)

	// --- Assert ---
	assert.Equal(t, engine.CodeNullptr, engine.CodeOf(err))
	assert.Empty(t, lb.events)
}

func TestEngine_Close(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	lb := &loopback{eng: localengine.New()}
	e := newEngine(lb, 0)

	// --- Act ---
	e.Close()

	// --- Assert ---
	assert.True(t, lb.closed)
	assert.Equal(t, DefaultTimeout, e.timeout)
}

func TestDial_RejectsBadURL(t *testing.T) {
	t.Parallel()

	// --- Act ---
	_, err := Dial(testutil.Context(t), Options{URL: "not a url"})

	// --- Assert ---
	assert.ErrorContains(t, err, "scheme and a host")
}
