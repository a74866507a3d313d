package yaml_adapter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/accgraph/internal/arg"
	"github.com/vk/accgraph/internal/definition"
	"github.com/vk/accgraph/internal/localengine"
	"github.com/vk/accgraph/internal/ops"
	"github.com/vk/accgraph/internal/pipeline"
	"github.com/vk/accgraph/internal/tensor"
	"github.com/vk/accgraph/internal/testutil"
	"github.com/zclconf/go-cty/cty"
)

const preprocessYAML = `
pipelines:
  - name: preprocess
    batch_size: 2
    queue_depth: 4
    outputs: [norm]
    sources:
      - name: frames
        shape: [8, 8, 3]
        dtype: float32
        layout: NHWC
    operators:
      - kind: ResizeCrop
        name: rc
        input: frames
        args:
          resize: [4, 4]
          crop_pos_x: 0
      - kind: Normalize
        name: norm
        input: rc
        args:
          mean: [0.5, 0.5, 0.5]
          stddev: [1, 1, 1]
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	path := writeFile(t, "main.yaml", preprocessYAML)

	// --- Act ---
	m, err := NewLoader().LoadFile(testutil.Context(t), path)

	// --- Assert ---
	require.NoError(t, err)
	require.Len(t, m.Pipelines, 1)
	p := m.Pipelines[0]
	assert.Equal(t, "preprocess", p.Name)
	assert.Equal(t, 2, p.BatchSize)
	assert.Equal(t, 4, p.QueueDepth)
	assert.Nil(t, p.AutoFuse)
	assert.Equal(t, tensor.DTypeFloat32, p.Sources[0].DType)
	require.Len(t, p.Operators, 2)

	rc := p.Operators[0]
	assert.Equal(t, cty.TupleVal([]cty.Value{cty.NumberIntVal(4), cty.NumberIntVal(4)}), rc.Args[ops.ArgResize])
	x, err := arg.FromCty(rc.Args[ops.ArgCropPosX], arg.TypeFloat)
	require.NoError(t, err)
	assert.Equal(t, arg.Float(0), x)

	stddev, err := arg.FromCty(p.Operators[1].Args[ops.ArgStddev], arg.TypeFloat)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1, 1}, stddev.FloatSlice())
}

func TestLoadFile_EndToEnd(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	ctx := testutil.Context(t)
	path := writeFile(t, "main.yml", preprocessYAML)
	m, err := definition.Load(ctx, []definition.Loader{NewLoader()}, path)
	require.NoError(t, err)

	// --- Act ---
	inst, err := definition.Instantiate(ctx, m.Pipelines[0], pipeline.DefaultConfig(), localengine.New())
	require.NoError(t, err)
	out, err := inst.Pipeline.Run(ctx, inst.SyntheticInputs())

	// --- Assert ---
	require.NoError(t, err)
	require.Len(t, out, 1)
	want := tensor.Repeat(tensor.Filled([]int{4, 4, 3}, tensor.DTypeFloat32, tensor.LayoutNHWC, 0), 2)
	assert.True(t, want.Equal(out[0].Batch, 1e-6), "got %v", out[0].Batch)
}

func TestLoadFile_Errors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		content string
		wantErr string
	}{
		{name: "malformed", content: "pipelines: [", wantErr: "parse yaml"},
		{name: "unknown key", content: "pipelines:\n  - name: p\n    colour: red\n", wantErr: "field colour not found"},
		{name: "bad layout", content: "pipelines:\n  - name: p\n    sources:\n      - {name: x, layout: HWC}\n", wantErr: `source "x"`},
		{name: "map argument", content: "pipelines:\n  - name: p\n    operators:\n      - {kind: ToTensor, name: t, input: x, args: {layout: {a: 1}}}\n", wantErr: `argument "layout"`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			// --- Arrange ---
			path := writeFile(t, "bad.yaml", tc.content)

			// --- Act ---
			_, err := NewLoader().LoadFile(testutil.Context(t), path)

			// --- Assert ---
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestLoadFile_Empty(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	path := writeFile(t, "empty.yaml", "")

	// --- Act ---
	m, err := NewLoader().LoadFile(testutil.Context(t), path)

	// --- Assert ---
	require.NoError(t, err)
	assert.Empty(t, m.Pipelines)
}
