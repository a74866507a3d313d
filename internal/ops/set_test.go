package ops

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/accgraph/internal/arg"
	"github.com/vk/accgraph/internal/nodeid"
	"github.com/zclconf/go-cty/cty"
)

func newSet(t *testing.T) (*Set, *nodeid.Registry, nodeid.Node) {
	t.Helper()
	reg := nodeid.NewRegistry()
	s := NewSet(reg)
	src, err := s.ExternalSource("x", "")
	require.NoError(t, err)
	return s, reg, src.Output()
}

func requireArgReason(t *testing.T, err error, reason arg.Reason) *arg.Error {
	t.Helper()
	require.Error(t, err)
	require.True(t, errors.Is(err, arg.ErrArgument), "expected an argument error, got %v", err)
	var ae *arg.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, reason, ae.Reason, "error: %v", err)
	return ae
}

func TestExternalSource(t *testing.T) {
	t.Parallel()

	reg := nodeid.NewRegistry()
	s := NewSet(reg)

	spec, err := s.ExternalSource("frames", "")
	require.NoError(t, err)
	assert.Equal(t, KindExternalSource, spec.Op())
	assert.Empty(t, spec.Inputs())
	assert.Equal(t, "frames_1", spec.Output().Name)
	assert.Equal(t, nodeid.DefaultDevice, spec.Output().Device)
	assert.True(t, reg.IsExternal("frames_1"))

	_, err = s.ExternalSource("", "")
	requireArgReason(t, err, arg.ReasonMissing)
	assert.Equal(t, 1, reg.Len())
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	t.Run("valid", func(t *testing.T) {
		s, _, x := newSet(t)

		spec, err := s.Normalize(x, arg.Floats(0.5, 0.5, 0.5), arg.Floats(0.5, 0.5, 0.5), nil)

		require.NoError(t, err)
		assert.Equal(t, KindNormalize, spec.Op())
		assert.Equal(t, []nodeid.Node{x}, spec.Inputs())
		assert.Equal(t, "Normalize_2", spec.Output().Name)
		assert.Equal(t, []string{ArgMean, ArgStddev}, spec.ArgNames())
	})

	t.Run("scalar is broadcast per channel", func(t *testing.T) {
		s, _, x := newSet(t)

		spec, err := s.Normalize(x, arg.Float(0.5), arg.Float(0.25), Args{ArgScale: arg.Float(2)})

		require.NoError(t, err)
		mean, _ := spec.Arg(ArgMean)
		assert.Equal(t, []float64{0.5, 0.5, 0.5}, mean.FloatSlice())
		scale, _ := spec.Arg(ArgScale)
		assert.Equal(t, 2.0, scale.AsFloat())
	})

	t.Run("wrong mean count creates no node", func(t *testing.T) {
		s, reg, x := newSet(t)

		spec, err := s.Normalize(x, arg.Floats(0.5, 0.5), arg.Floats(0.5, 0.5, 0.5), nil)

		assert.Nil(t, spec)
		ae := requireArgReason(t, err, arg.ReasonCount)
		assert.Equal(t, KindNormalize, ae.Op)
		assert.Equal(t, ArgMean, ae.Arg)
		assert.Equal(t, 1, reg.Len())
	})

	t.Run("mixed element types", func(t *testing.T) {
		s, _, x := newSet(t)
		_, err := s.Normalize(x, arg.List(arg.Float(0.5), arg.Int(1), arg.Float(0.5)), arg.Float(1), nil)
		requireArgReason(t, err, arg.ReasonMixedTypes)
	})

	t.Run("int mean is the wrong type", func(t *testing.T) {
		s, _, x := newSet(t)
		_, err := s.Normalize(x, arg.Ints(1, 1, 1), arg.Float(1), nil)
		requireArgReason(t, err, arg.ReasonType)
	})

	t.Run("zero stddev", func(t *testing.T) {
		s, _, x := newSet(t)
		_, err := s.Normalize(x, arg.Float(0), arg.Floats(1, 0, 1), nil)
		ae := requireArgReason(t, err, arg.ReasonRange)
		assert.Equal(t, ArgStddev, ae.Arg)
	})

	t.Run("unregistered input", func(t *testing.T) {
		s, _, _ := newSet(t)
		other := nodeid.NewRegistry().RegisterExternal("x", "")

		_, err := s.Normalize(other, arg.Float(0), arg.Float(1), nil)

		ae := requireArgReason(t, err, arg.ReasonReference)
		assert.Equal(t, other.Name, ae.Node)
	})
}

func TestResizeCrop(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		s, _, x := newSet(t)

		spec, err := s.ResizeCrop(x, arg.Ints(8, 6), nil)

		require.NoError(t, err)
		want := map[string]arg.Value{
			ArgResize:            arg.Ints(8, 6),
			ArgCrop:              arg.Ints(8, 6),
			ArgInterpolationMode: arg.String(InterpolateBilinear),
			ArgCropPosX:          arg.Float(0.5),
			ArgCropPosY:          arg.Float(0.5),
			ArgRoundMode:         arg.String(RoundTruncate),
		}
		got := spec.Args()
		require.Len(t, got, len(want))
		for k, v := range want {
			assert.True(t, v.Equal(got[k]), "%s: want %s, got %s", k, v, got[k])
		}
	})

	testCases := []struct {
		name   string
		resize arg.Value
		extra  Args
		reason arg.Reason
		arg    string
	}{
		{name: "resize missing", resize: arg.Value{}, reason: arg.ReasonMissing, arg: ArgResize},
		{name: "resize count", resize: arg.Ints(8), reason: arg.ReasonCount, arg: ArgResize},
		{name: "resize non-positive", resize: arg.Ints(0, 4), reason: arg.ReasonRange, arg: ArgResize},
		{name: "crop larger than resize", resize: arg.Ints(4, 4), extra: Args{ArgCrop: arg.Ints(5, 4)}, reason: arg.ReasonRange, arg: ArgCrop},
		{name: "bad interpolation", resize: arg.Ints(4, 4), extra: Args{ArgInterpolationMode: arg.String("nearest")}, reason: arg.ReasonChoice, arg: ArgInterpolationMode},
		{name: "bad round mode", resize: arg.Ints(4, 4), extra: Args{ArgRoundMode: arg.String("ceil")}, reason: arg.ReasonChoice, arg: ArgRoundMode},
		{name: "crop pos out of range", resize: arg.Ints(4, 4), extra: Args{ArgCropPosX: arg.Float(1.5)}, reason: arg.ReasonRange, arg: ArgCropPosX},
		{name: "unknown argument", resize: arg.Ints(4, 4), extra: Args{"antialias": arg.Bool(true)}, reason: arg.ReasonUnknown, arg: "antialias"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s, reg, x := newSet(t)

			_, err := s.ResizeCrop(x, tc.resize, tc.extra)

			ae := requireArgReason(t, err, tc.reason)
			assert.Equal(t, tc.arg, ae.Arg)
			assert.Equal(t, KindResizeCrop, ae.Op)
			assert.Equal(t, 1, reg.Len())
		})
	}
}

func TestToTensor(t *testing.T) {
	t.Parallel()

	s, _, x := newSet(t)

	spec, err := s.ToTensor(x, nil)
	require.NoError(t, err)
	layout, _ := spec.Arg(ArgLayout)
	assert.Equal(t, LayoutNCHW, layout.AsString())

	spec, err = s.ToTensor(x, Args{ArgLayout: arg.String(LayoutNHWC)})
	require.NoError(t, err)
	layout, _ = spec.Arg(ArgLayout)
	assert.Equal(t, LayoutNHWC, layout.AsString())

	_, err = s.ToTensor(x, Args{ArgLayout: arg.String("CHWN")})
	requireArgReason(t, err, arg.ReasonChoice)
}

func TestFusedAndQwen(t *testing.T) {
	t.Parallel()

	t.Run("fused kind only accepts bilinear", func(t *testing.T) {
		s, _, x := newSet(t)
		_, err := s.ToTensorResizeCropNormalize(x, arg.Ints(4, 4), arg.Floats(0.5), arg.Floats(0.5),
			Args{ArgInterpolationMode: arg.String(InterpolateBicubic)})
		requireArgReason(t, err, arg.ReasonChoice)
	})

	t.Run("fused kind needs matching mean and stddev", func(t *testing.T) {
		s, _, x := newSet(t)
		_, err := s.ToTensorResizeCropNormalize(x, arg.Ints(4, 4), arg.Floats(0.5, 0.5), arg.Floats(0.5), nil)
		requireArgReason(t, err, arg.ReasonCount)
	})

	t.Run("fused kind output base", func(t *testing.T) {
		s, _, x := newSet(t)
		spec, err := s.ToTensorResizeCropNormalize(x, arg.Ints(4, 4), arg.Floats(0.5, 0.5, 0.5), arg.Floats(0.5, 0.5, 0.5), nil)
		require.NoError(t, err)
		assert.Equal(t, "Normalize", nodeid.Base(spec.Output().Name))
		_, hasRound := spec.Arg(ArgRoundMode)
		assert.False(t, hasRound)
	})

	t.Run("qwen defaults", func(t *testing.T) {
		s, _, x := newSet(t)
		spec, err := s.QwenFusionOp(x, arg.Floats(0.5, 0.5, 0.5), arg.Floats(0.5, 0.5, 0.5), nil)
		require.NoError(t, err)
		assert.Equal(t, "qwen_output", nodeid.Base(spec.Output().Name))
		minPixels, _ := spec.Arg(ArgMinPixels)
		maxPixels, _ := spec.Arg(ArgMaxPixels)
		patch, _ := spec.Arg(ArgPatchSize)
		assert.Equal(t, int64(3136), minPixels.AsInt())
		assert.Equal(t, int64(1003520), maxPixels.AsInt())
		assert.Equal(t, int64(14), patch.AsInt())
	})

	t.Run("qwen pixel bounds", func(t *testing.T) {
		s, _, x := newSet(t)
		_, err := s.QwenFusionOp(x, arg.Floats(0.5), arg.Floats(0.5),
			Args{ArgMinPixels: arg.Int(100), ArgMaxPixels: arg.Int(10)})
		ae := requireArgReason(t, err, arg.ReasonRange)
		assert.Equal(t, ArgMaxPixels, ae.Arg)
	})
}

func TestBuild_Generic(t *testing.T) {
	t.Parallel()

	t.Run("unknown kind", func(t *testing.T) {
		s, _, x := newSet(t)
		_, err := s.Build("Blur", []nodeid.Node{x}, nil)
		ae := requireArgReason(t, err, arg.ReasonUnknown)
		assert.Equal(t, "Blur", ae.Op)
	})

	t.Run("sources are not built generically", func(t *testing.T) {
		s, _, _ := newSet(t)
		_, err := s.Build(KindExternalSource, nil, nil)
		requireArgReason(t, err, arg.ReasonUnknown)
	})

	t.Run("input count", func(t *testing.T) {
		s, _, x := newSet(t)
		_, err := s.Build(KindToTensor, []nodeid.Node{x, x}, nil)
		ae := requireArgReason(t, err, arg.ReasonCount)
		assert.Equal(t, "inputs", ae.Arg)
	})
}

func TestBuildCty(t *testing.T) {
	t.Parallel()

	t.Run("numbers follow the declared type", func(t *testing.T) {
		s, _, x := newSet(t)

		spec, err := s.BuildCty(KindNormalize, []nodeid.Node{x}, map[string]cty.Value{
			ArgMean:   cty.TupleVal([]cty.Value{cty.NumberIntVal(0), cty.NumberFloatVal(0.5), cty.NumberIntVal(1)}),
			ArgStddev: cty.NumberIntVal(1),
		})

		require.NoError(t, err)
		mean, _ := spec.Arg(ArgMean)
		assert.Equal(t, arg.TypeFloat, mean.Type())
		assert.Equal(t, []float64{0, 0.5, 1}, mean.FloatSlice())
		std, _ := spec.Arg(ArgStddev)
		assert.Equal(t, []float64{1, 1, 1}, std.FloatSlice())
	})

	t.Run("int argument given a fraction", func(t *testing.T) {
		s, _, x := newSet(t)

		_, err := s.BuildCty(KindResizeCrop, []nodeid.Node{x}, map[string]cty.Value{
			ArgResize: cty.TupleVal([]cty.Value{cty.NumberIntVal(4), cty.NumberFloatVal(4.5)}),
		})

		requireArgReason(t, err, arg.ReasonMixedTypes)
	})

	t.Run("unknown argument", func(t *testing.T) {
		s, _, x := newSet(t)
		_, err := s.BuildCty(KindToTensor, []nodeid.Node{x}, map[string]cty.Value{"dtype": cty.StringVal("u8")})
		ae := requireArgReason(t, err, arg.ReasonUnknown)
		assert.Equal(t, "dtype", ae.Arg)
	})

	t.Run("object value", func(t *testing.T) {
		s, _, x := newSet(t)
		_, err := s.BuildCty(KindToTensor, []nodeid.Node{x}, map[string]cty.Value{
			ArgLayout: cty.ObjectVal(map[string]cty.Value{"a": cty.True}),
		})
		requireArgReason(t, err, arg.ReasonType)
	})
}

func TestArgType(t *testing.T) {
	typ, ok := ArgType(KindResizeCrop, ArgCropPosX)
	assert.True(t, ok)
	assert.Equal(t, arg.TypeFloat, typ)

	_, ok = ArgType(KindResizeCrop, ArgMean)
	assert.False(t, ok)
	_, ok = ArgType("Blur", ArgMean)
	assert.False(t, ok)
	assert.Len(t, Kinds(), len(catalog))
}
