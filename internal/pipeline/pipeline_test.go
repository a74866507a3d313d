package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/accgraph/internal/arg"
	"github.com/vk/accgraph/internal/engine"
	"github.com/vk/accgraph/internal/engine/enginetest"
	"github.com/vk/accgraph/internal/graph"
	"github.com/vk/accgraph/internal/localengine"
	"github.com/vk/accgraph/internal/nodeid"
	"github.com/vk/accgraph/internal/ops"
	"github.com/vk/accgraph/internal/opspec"
	"github.com/vk/accgraph/internal/tensor"
	"github.com/vk/accgraph/internal/testutil"
)

// normalizePlan declares x -> Normalize on p.
func normalizePlan(t *testing.T, p *Pipeline) (nodeid.Node, []*opspec.Spec, nodeid.Node) {
	t.Helper()
	src, err := p.Ops().ExternalSource("x", "")
	require.NoError(t, err)
	norm, err := p.Ops().Normalize(src.Output(), arg.Floats(0.5, 0.5, 0.5), arg.Floats(0.5, 0.5, 0.5), nil)
	require.NoError(t, err)
	return src.Output(), []*opspec.Spec{src, norm}, norm.Output()
}

func floatBatch(n int) *tensor.Batch {
	return tensor.Repeat(tensor.Filled([]int{4, 4, 3}, tensor.DTypeFloat32, tensor.LayoutNHWC, 0.75), n)
}

func builtPipeline(t *testing.T, eng engine.Engine) (*Pipeline, nodeid.Node, nodeid.Node) {
	t.Helper()
	p := New(DefaultConfig(), eng)
	x, specs, out := normalizePlan(t, p)
	require.NoError(t, p.Build(testutil.Context(t), specs, []nodeid.Node{out}))
	return p, x, out
}

func TestScenario_NormalizeRun(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	ctx := testutil.Context(t)
	cfg := DefaultConfig()
	cfg.BatchSize = 2
	p := New(cfg, localengine.New())
	x, specs, out := normalizePlan(t, p)

	// --- Act ---
	err := p.Build(ctx, specs, []nodeid.Node{out})
	require.NoError(t, err)
	res, err := p.Run(ctx, map[string]*tensor.Batch{x.Name: floatBatch(2)})

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, StateBuilt, p.State())
	require.Len(t, res, 1)
	assert.Equal(t, out.Name, res[0].Name)
	assert.Equal(t, []int{4, 4, 3}, res[0].Batch.Shape())
	assert.Equal(t, 2, res[0].Batch.Len())
	assert.InDelta(t, 0.5, res[0].Batch.Tensors[0].Data[0], 1e-6)
}

func TestScenario_StructureErrors(t *testing.T) {
	t.Parallel()

	t.Run("no specs", func(t *testing.T) {
		p := New(DefaultConfig(), enginetest.New())
		out := p.reg.Register("orphan", "")

		err := p.Build(testutil.Context(t), nil, []nodeid.Node{out})

		require.ErrorIs(t, err, graph.ErrStructure)
		assert.Equal(t, graph.ReasonNoDataNodeForOutput, graph.ReasonOf(err))
		assert.Equal(t, StateConstructing, p.State())
	})

	t.Run("no outputs", func(t *testing.T) {
		eng := enginetest.New()
		p := New(DefaultConfig(), eng)
		_, specs, _ := normalizePlan(t, p)

		err := p.Build(testutil.Context(t), specs, nil)

		require.ErrorIs(t, err, graph.ErrStructure)
		assert.Equal(t, graph.ReasonNoOutputsRequested, graph.ReasonOf(err))
		assert.Zero(t, eng.Builds())
	})

	t.Run("argument error before any node", func(t *testing.T) {
		p := New(DefaultConfig(), enginetest.New())
		src, err := p.Ops().ExternalSource("x", "")
		require.NoError(t, err)

		_, err = p.Ops().Normalize(src.Output(), arg.Floats(0.5, 0.5), arg.Floats(0.5, 0.5, 0.5), nil)

		require.ErrorIs(t, err, arg.ErrArgument)
		assert.Equal(t, arg.ReasonCount, arg.ReasonOf(err))
		assert.Equal(t, 1, p.reg.Len())
	})
}

func TestStateMachine(t *testing.T) {
	t.Parallel()

	t.Run("second build fails", func(t *testing.T) {
		eng := enginetest.New()
		p, _, out := builtPipeline(t, eng)

		err := p.Build(testutil.Context(t), nil, []nodeid.Node{out})

		require.ErrorIs(t, err, ErrState)
		var se *StateError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, "Build", se.Op)
		assert.Equal(t, StateBuilt, se.State)
		assert.Equal(t, 1, eng.Builds())
	})

	t.Run("build needs a logger in the context", func(t *testing.T) {
		p := New(DefaultConfig(), enginetest.New())
		_, specs, out := normalizePlan(t, p)

		assert.Panics(t, func() { _ = p.Build(context.Background(), specs, []nodeid.Node{out}) })
	})

	t.Run("run before build", func(t *testing.T) {
		eng := enginetest.New()
		p := New(DefaultConfig(), eng)

		_, err := p.Run(testutil.Context(t), nil)

		require.ErrorIs(t, err, ErrState)
		assert.Zero(t, eng.Runs())
	})

	t.Run("runs repeat while they succeed", func(t *testing.T) {
		eng := enginetest.New()
		p, x, out := builtPipeline(t, eng)

		for i := 0; i < 3; i++ {
			res, err := p.Run(testutil.Context(t), map[string]*tensor.Batch{x.Name: floatBatch(1)})
			require.NoError(t, err)
			assert.Equal(t, out.Name, res[0].Name)
		}
		assert.Equal(t, 3, eng.Runs())
		assert.Equal(t, StateBuilt, p.State())
	})

	for _, code := range []engine.Code{engine.CodeSingleOpError, engine.CodeFusionOpError, engine.CodeUserOpError, engine.CodeOperatorError} {
		t.Run(fmt.Sprintf("%s breaks the pipeline", code), func(t *testing.T) {
			ctx := testutil.Context(t)
			eng := enginetest.New().FailRuns(&engine.Error{Code: code, Op: ops.KindNormalize, Message: "dtype mismatch"})
			p, x, _ := builtPipeline(t, eng)
			in := map[string]*tensor.Batch{x.Name: floatBatch(1)}

			_, err := p.Run(ctx, in)
			require.ErrorIs(t, err, ErrRun)
			var re *RunError
			require.ErrorAs(t, err, &re)
			assert.Equal(t, ReasonSingleOperatorFailure, re.Reason)
			assert.Equal(t, code, re.Code)
			assert.Equal(t, ops.KindNormalize, re.Op)
			assert.Equal(t, StateBroken, p.State())

			_, err = p.Run(ctx, in)
			require.ErrorIs(t, err, ErrState)
			assert.Equal(t, 1, eng.Runs(), "a broken pipeline must not call the engine")
		})
	}

	t.Run("mixed dtypes in a batch break the pipeline", func(t *testing.T) {
		ctx := testutil.Context(t)
		p, x, _ := builtPipeline(t, localengine.New())
		mixed := floatBatch(1)
		mixed.Tensors = append(mixed.Tensors, tensor.New([]int{4, 4, 3}, tensor.DTypeUint8, tensor.LayoutNHWC))

		_, err := p.Run(ctx, map[string]*tensor.Batch{x.Name: mixed})

		var re *RunError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, ReasonSingleOperatorFailure, re.Reason)
		assert.Equal(t, engine.CodeSingleOpError, re.Code)
		assert.Equal(t, ops.KindNormalize, re.Op)
		assert.Equal(t, StateBroken, p.State())
	})

	t.Run("cancelled run keeps the pipeline built", func(t *testing.T) {
		p, x, _ := builtPipeline(t, localengine.New())
		in := map[string]*tensor.Batch{x.Name: floatBatch(2)}
		cancelled, cancel := context.WithCancel(testutil.Context(t))
		cancel()

		_, err := p.Run(cancelled, in)

		var re *RunError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, ReasonEngineFailure, re.Reason)
		assert.Equal(t, engine.CodePipelineError, re.Code)
		assert.Equal(t, StateBuilt, p.State())

		res, err := p.Run(testutil.Context(t), in)
		require.NoError(t, err)
		assert.Equal(t, 2, res[0].Batch.Len())
	})

	t.Run("engine-detected broken state", func(t *testing.T) {
		eng := enginetest.New().FailRuns(&engine.Error{Code: engine.CodePipelineStateError})
		p, x, _ := builtPipeline(t, eng)

		_, err := p.Run(testutil.Context(t), map[string]*tensor.Batch{x.Name: floatBatch(1)})

		require.ErrorIs(t, err, ErrState)
		var se *StateError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, engine.CodePipelineStateError, se.Code)
		assert.Equal(t, StateBroken, p.State())
	})

	t.Run("engine failure keeps the pipeline built", func(t *testing.T) {
		ctx := testutil.Context(t)
		eng := enginetest.New().FailRuns(errors.New("connection reset"), &engine.Error{Code: engine.CodeTensorError})
		p, x, _ := builtPipeline(t, eng)
		in := map[string]*tensor.Batch{x.Name: floatBatch(1)}

		_, err := p.Run(ctx, in)
		var re *RunError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, ReasonEngineFailure, re.Reason)
		assert.Equal(t, engine.CodeCommonUnknown, re.Code)

		_, err = p.Run(ctx, in)
		require.ErrorAs(t, err, &re)
		assert.Equal(t, engine.CodeTensorError, re.Code)

		_, err = p.Run(ctx, in)
		assert.NoError(t, err)
		assert.Equal(t, StateBuilt, p.State())
	})

	t.Run("engine build failure leaves the pipeline constructing", func(t *testing.T) {
		eng := enginetest.New()
		eng.BuildErr = &engine.Error{Code: engine.CodePipelineBuildError, Op: ops.KindQwenFusionOp}
		p := New(DefaultConfig(), eng)
		_, specs, out := normalizePlan(t, p)

		err := p.Build(testutil.Context(t), specs, []nodeid.Node{out})

		require.ErrorIs(t, err, ErrRun)
		assert.Equal(t, engine.CodePipelineBuildError, engine.CodeOf(err))
		assert.Equal(t, StateConstructing, p.State())
		assert.Nil(t, p.Graph())
	})
}

func TestRun_Inputs(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		inputs func(x nodeid.Node) map[string]*tensor.Batch
		reason InputReason
	}{
		{
			name:   "unknown key",
			inputs: func(x nodeid.Node) map[string]*tensor.Batch { return map[string]*tensor.Batch{x.Name: floatBatch(1), "y_9": floatBatch(1)} },
			reason: ReasonUnknownInput,
		},
		{
			name:   "non-source node",
			inputs: func(x nodeid.Node) map[string]*tensor.Batch { return map[string]*tensor.Batch{"Normalize_2": floatBatch(1)} },
			reason: ReasonUnknownInput,
		},
		{
			name:   "nil batch",
			inputs: func(x nodeid.Node) map[string]*tensor.Batch { return map[string]*tensor.Batch{x.Name: nil} },
			reason: ReasonInvalidBatch,
		},
		{
			name:   "empty batch",
			inputs: func(x nodeid.Node) map[string]*tensor.Batch { return map[string]*tensor.Batch{x.Name: tensor.NewBatch()} },
			reason: ReasonInvalidBatch,
		},
		{
			name: "malformed sample",
			inputs: func(x nodeid.Node) map[string]*tensor.Batch {
				b := floatBatch(2)
				b.Tensors[1].Data = b.Tensors[1].Data[:5]
				return map[string]*tensor.Batch{x.Name: b}
			},
			reason: ReasonInvalidBatch,
		},
		{
			name:   "missing source",
			inputs: func(x nodeid.Node) map[string]*tensor.Batch { return map[string]*tensor.Batch{} },
			reason: ReasonMissingInput,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			eng := enginetest.New()
			p, x, _ := builtPipeline(t, eng)

			_, err := p.Run(testutil.Context(t), tc.inputs(x))

			require.ErrorIs(t, err, ErrInput)
			var ie *InputError
			require.ErrorAs(t, err, &ie)
			assert.Equal(t, tc.reason, ie.Reason)
			assert.Zero(t, eng.Runs())
			assert.Equal(t, StateBuilt, p.State())
		})
	}

	t.Run("sources pruned from the graph are accepted but not forwarded", func(t *testing.T) {
		eng := enginetest.New()
		p := New(DefaultConfig(), eng)
		x, specs, out := normalizePlan(t, p)
		unused, err := p.Ops().ExternalSource("unused", "")
		require.NoError(t, err)
		specs = append(specs, unused)
		require.NoError(t, p.Build(testutil.Context(t), specs, []nodeid.Node{out}))

		_, err = p.Run(testutil.Context(t), map[string]*tensor.Batch{x.Name: floatBatch(1), unused.Output().Name: floatBatch(1)})

		require.NoError(t, err)
		assert.Len(t, eng.Inputs(), 1)
		assert.Contains(t, eng.Inputs(), x.Name)
	})

	t.Run("engine returns the wrong number of outputs", func(t *testing.T) {
		eng := enginetest.New()
		eng.RunFunc = func(*graph.Graph, map[string]*tensor.Batch) ([]*tensor.Batch, error) { return nil, nil }
		p, x, _ := builtPipeline(t, eng)

		_, err := p.Run(testutil.Context(t), map[string]*tensor.Batch{x.Name: floatBatch(1)})

		var re *RunError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, ReasonEngineFailure, re.Reason)
	})
}

func TestBuild_Config(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		cfg   Config
		field string
	}{
		{name: "zero batch", cfg: Config{BatchSize: 0, NumThreads: 1, QueueDepth: 1}, field: "batch_size"},
		{name: "huge batch", cfg: Config{BatchSize: 1025, NumThreads: 1, QueueDepth: 1}, field: "batch_size"},
		{name: "negative threads", cfg: Config{BatchSize: 1, NumThreads: -1, QueueDepth: 1}, field: "num_threads"},
		{name: "deep queue", cfg: Config{BatchSize: 1, NumThreads: 1, QueueDepth: 129}, field: "queue_depth"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			eng := enginetest.New()
			p := New(tc.cfg, eng)
			_, specs, out := normalizePlan(t, p)

			err := p.Build(testutil.Context(t), specs, []nodeid.Node{out})

			require.ErrorIs(t, err, ErrConfig)
			var ce *ConfigError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tc.field, ce.Field)
			assert.Equal(t, StateConstructing, p.State())
			assert.Zero(t, eng.Builds())
		})
	}

	t.Run("nil engine", func(t *testing.T) {
		p := New(DefaultConfig(), nil)
		_, specs, out := normalizePlan(t, p)
		err := p.Build(testutil.Context(t), specs, []nodeid.Node{out})
		require.ErrorIs(t, err, ErrConfig)
	})

	t.Run("engine receives the config", func(t *testing.T) {
		eng := enginetest.New()
		p := New(Config{BatchSize: 8, NumThreads: 4, QueueDepth: 3}, eng)
		_, specs, out := normalizePlan(t, p)
		require.NoError(t, p.Build(testutil.Context(t), specs, []nodeid.Node{out}))
		assert.Equal(t, engine.Config{BatchSize: 8, NumThreads: 4, QueueDepth: 3}, eng.Config())
	})
}

func TestBuild_Fusion(t *testing.T) {
	t.Parallel()

	declare := func(t *testing.T, p *Pipeline) ([]*opspec.Spec, nodeid.Node) {
		src, err := p.Ops().ExternalSource("frames", "")
		require.NoError(t, err)
		tt, err := p.Ops().ToTensor(src.Output(), nil)
		require.NoError(t, err)
		rc, err := p.Ops().ResizeCrop(tt.Output(), arg.Ints(2, 2), nil)
		require.NoError(t, err)
		norm, err := p.Ops().Normalize(rc.Output(), arg.Float(0.5), arg.Float(0.5), nil)
		require.NoError(t, err)
		return []*opspec.Spec{src, tt, rc, norm}, norm.Output()
	}

	for _, autoFuse := range []bool{true, false} {
		t.Run(fmt.Sprintf("auto_fuse=%t", autoFuse), func(t *testing.T) {
			eng := enginetest.New()
			cfg := DefaultConfig()
			cfg.AutoFuse = autoFuse
			p := New(cfg, eng)
			specs, out := declare(t, p)

			require.NoError(t, p.Build(testutil.Context(t), specs, []nodeid.Node{out}))

			want := []string{ops.KindExternalSource, ops.KindToTensor, ops.KindResizeCrop, ops.KindNormalize}
			if autoFuse {
				want = []string{ops.KindExternalSource, ops.KindToTensorResizeCropNormalize}
			}
			assert.Equal(t, want, eng.Graph().Ops())
			assert.Same(t, eng.Graph(), p.Graph())
			assert.Equal(t, []nodeid.Node{out}, p.Graph().Outputs())
		})
	}
}

func TestPipeline_ConcurrentRuns(t *testing.T) {
	t.Parallel()

	eng := enginetest.New()
	p, x, _ := builtPipeline(t, eng)
	ctx := testutil.Context(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Run(ctx, map[string]*tensor.Batch{x.Name: floatBatch(1)})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 8, eng.Runs())
}

func TestPipeline_NodesAreUniquePerPipeline(t *testing.T) {
	t.Parallel()

	a := New(DefaultConfig(), enginetest.New())
	b := New(DefaultConfig(), enginetest.New())
	xa, err := a.Ops().ExternalSource("x", "")
	require.NoError(t, err)
	xb, err := b.Ops().ExternalSource("x", "")
	require.NoError(t, err)

	assert.Equal(t, xa.Output().Name, xb.Output().Name)
	assert.NotEqual(t, xa.Output(), xb.Output())
	assert.NotEqual(t, a.Session(), b.Session())
}
