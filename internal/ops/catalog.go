package ops

import (
	"fmt"

	"github.com/vk/accgraph/internal/arg"
)

// Operator kinds.
const (
	KindExternalSource              = "ExternalSource"
	KindToTensor                    = "ToTensor"
	KindResizeCrop                  = "ResizeCrop"
	KindNormalize                   = "Normalize"
	KindToTensorResizeCropNormalize = "ToTensorResizeCropNormalize"
	KindQwenFusionOp                = "QwenFusionOp"
)

// Argument names.
const (
	ArgLayout            = "layout"
	ArgResize            = "resize"
	ArgCrop              = "crop"
	ArgInterpolationMode = "interpolation_mode"
	ArgCropPosX          = "crop_pos_x"
	ArgCropPosY          = "crop_pos_y"
	ArgRoundMode         = "round_mode"
	ArgMean              = "mean"
	ArgStddev            = "stddev"
	ArgScale             = "scale"
	ArgMinPixels         = "min_pixels"
	ArgMaxPixels         = "max_pixels"
	ArgPatchSize         = "patch_size"
	ArgTemporalPatchSize = "temporal_patch_size"
	ArgMergeSize         = "merge_size"
)

// Argument values.
const (
	LayoutNCHW          = "NCHW"
	LayoutNHWC          = "NHWC"
	InterpolateBilinear = "bilinear"
	InterpolateBicubic  = "bicubic"
	RoundRound          = "round"
	RoundTruncate       = "truncate"
)

const rgbChannels = 3

type param struct {
	desc arg.Desc
	// def supplies the value used when the caller omits the argument. It sees
	// the arguments validated so far.
	def func(args map[string]arg.Value) arg.Value
}

type kind struct {
	name     string
	output   string
	external bool
	params   []param
	checks   []func(args map[string]arg.Value) error
}

func (k *kind) param(name string) (param, bool) {
	for _, p := range k.params {
		if p.desc.Name == name {
			return p, true
		}
	}
	return param{}, false
}

func constant(v arg.Value) func(map[string]arg.Value) arg.Value {
	return func(map[string]arg.Value) arg.Value { return v }
}

func sameAs(name string) func(map[string]arg.Value) arg.Value {
	return func(args map[string]arg.Value) arg.Value { return args[name] }
}

func choices(vs ...string) []arg.Value {
	out := make([]arg.Value, len(vs))
	for i, v := range vs {
		out[i] = arg.String(v)
	}
	return out
}

var (
	layoutParam = param{
		desc: arg.Desc{Name: ArgLayout, Type: arg.TypeString, Choices: choices(LayoutNCHW, LayoutNHWC), Optional: true},
		def:  constant(arg.String(LayoutNCHW)),
	}
	resizeParam = param{desc: arg.Desc{Name: ArgResize, Type: arg.TypeInt, Count: 2}}
	cropParam   = param{
		desc: arg.Desc{Name: ArgCrop, Type: arg.TypeInt, Count: 2, Optional: true},
		def:  sameAs(ArgResize),
	}
	cropPosXParam = param{
		desc: arg.Desc{Name: ArgCropPosX, Type: arg.TypeFloat, Optional: true},
		def:  constant(arg.Float(0.5)),
	}
	cropPosYParam = param{
		desc: arg.Desc{Name: ArgCropPosY, Type: arg.TypeFloat, Optional: true},
		def:  constant(arg.Float(0.5)),
	}
	scaleParam = param{desc: arg.Desc{Name: ArgScale, Type: arg.TypeFloat, Optional: true}}
)

func intParam(name string, def int64) param {
	return param{
		desc: arg.Desc{Name: name, Type: arg.TypeInt, Optional: true},
		def:  constant(arg.Int(def)),
	}
}

var catalog = map[string]*kind{
	KindExternalSource: {
		name:     KindExternalSource,
		external: true,
	},
	KindToTensor: {
		name:   KindToTensor,
		output: KindToTensor,
		params: []param{layoutParam},
	},
	KindResizeCrop: {
		name:   KindResizeCrop,
		output: KindResizeCrop,
		params: []param{
			resizeParam,
			cropParam,
			{
				desc: arg.Desc{Name: ArgInterpolationMode, Type: arg.TypeString, Choices: choices(InterpolateBilinear, InterpolateBicubic), Optional: true},
				def:  constant(arg.String(InterpolateBilinear)),
			},
			cropPosXParam,
			cropPosYParam,
			{
				desc: arg.Desc{Name: ArgRoundMode, Type: arg.TypeString, Choices: choices(RoundRound, RoundTruncate), Optional: true},
				def:  constant(arg.String(RoundTruncate)),
			},
		},
		checks: []func(map[string]arg.Value) error{checkResizeCrop},
	},
	KindNormalize: {
		name:   KindNormalize,
		output: KindNormalize,
		params: []param{
			{desc: arg.Desc{Name: ArgMean, Type: arg.TypeFloat, Count: rgbChannels}},
			{desc: arg.Desc{Name: ArgStddev, Type: arg.TypeFloat, Count: rgbChannels}},
			scaleParam,
		},
		checks: []func(map[string]arg.Value) error{checkStddev},
	},
	KindToTensorResizeCropNormalize: {
		name:   KindToTensorResizeCropNormalize,
		output: KindNormalize,
		params: []param{
			resizeParam,
			{
				desc: arg.Desc{Name: ArgInterpolationMode, Type: arg.TypeString, Choices: choices(InterpolateBilinear), Optional: true},
				def:  constant(arg.String(InterpolateBilinear)),
			},
			cropPosXParam,
			cropPosYParam,
			cropParam,
			{desc: arg.Desc{Name: ArgRoundMode, Type: arg.TypeString, Choices: choices(RoundRound, RoundTruncate), Optional: true}},
			{desc: arg.Desc{Name: ArgMean, Type: arg.TypeFloat}},
			{desc: arg.Desc{Name: ArgStddev, Type: arg.TypeFloat}},
			scaleParam,
			layoutParam,
		},
		checks: []func(map[string]arg.Value) error{checkResizeCrop, checkStddev, checkChannels},
	},
	KindQwenFusionOp: {
		name:   KindQwenFusionOp,
		output: "qwen_output",
		params: []param{
			{desc: arg.Desc{Name: ArgMean, Type: arg.TypeFloat}},
			{desc: arg.Desc{Name: ArgStddev, Type: arg.TypeFloat}},
			intParam(ArgMinPixels, 56*56),
			intParam(ArgMaxPixels, 28*28*1280),
			intParam(ArgPatchSize, 14),
			intParam(ArgTemporalPatchSize, 2),
			intParam(ArgMergeSize, 2),
		},
		checks: []func(map[string]arg.Value) error{checkStddev, checkChannels, checkQwen},
	},
}

// Kinds returns every operator kind in the catalog.
func Kinds() []string {
	return []string{
		KindExternalSource,
		KindToTensor,
		KindResizeCrop,
		KindNormalize,
		KindToTensorResizeCropNormalize,
		KindQwenFusionOp,
	}
}

// ArgType returns the declared element type of an argument of kind.
func ArgType(kindName, argName string) (arg.Type, bool) {
	k, ok := catalog[kindName]
	if !ok {
		return arg.TypeInvalid, false
	}
	p, ok := k.param(argName)
	if !ok {
		return arg.TypeInvalid, false
	}
	return p.desc.Type, true
}

func checkResizeCrop(args map[string]arg.Value) error {
	resize := args[ArgResize].IntSlice()
	for _, d := range resize {
		if d <= 0 {
			return &arg.Error{Arg: ArgResize, Reason: arg.ReasonRange, Expected: "positive sizes", Actual: args[ArgResize].String()}
		}
	}
	crop, ok := args[ArgCrop]
	if !ok {
		return nil
	}
	for i, d := range crop.IntSlice() {
		if d <= 0 || d > resize[i] {
			return &arg.Error{
				Arg:      ArgCrop,
				Reason:   arg.ReasonRange,
				Expected: fmt.Sprintf("sizes in [1, resize] with resize %s", args[ArgResize]),
				Actual:   crop.String(),
			}
		}
	}
	for _, name := range []string{ArgCropPosX, ArgCropPosY} {
		if v, ok := args[name]; ok && (v.AsFloat() < 0 || v.AsFloat() > 1) {
			return &arg.Error{Arg: name, Reason: arg.ReasonRange, Expected: "a value in [0, 1]", Actual: v.String()}
		}
	}
	return nil
}

func checkStddev(args map[string]arg.Value) error {
	for _, s := range args[ArgStddev].FloatSlice() {
		if s == 0 {
			return &arg.Error{Arg: ArgStddev, Reason: arg.ReasonRange, Expected: "non-zero elements", Actual: args[ArgStddev].String()}
		}
	}
	return nil
}

// checkChannels makes mean and stddev agree in length when neither has a
// fixed count.
func checkChannels(args map[string]arg.Value) error {
	mean, std := args[ArgMean], args[ArgStddev]
	if mean.Len() != std.Len() {
		return &arg.Error{
			Arg:      ArgStddev,
			Reason:   arg.ReasonCount,
			Expected: fmt.Sprintf("%d elements to match mean", mean.Len()),
			Actual:   fmt.Sprintf("%d", std.Len()),
		}
	}
	return nil
}

func checkQwen(args map[string]arg.Value) error {
	for _, name := range []string{ArgMinPixels, ArgMaxPixels, ArgPatchSize, ArgTemporalPatchSize, ArgMergeSize} {
		if v, ok := args[name]; ok && v.AsInt() <= 0 {
			return &arg.Error{Arg: name, Reason: arg.ReasonRange, Expected: "a positive value", Actual: v.String()}
		}
	}
	lo, hi := args[ArgMinPixels].AsInt(), args[ArgMaxPixels].AsInt()
	if lo > hi {
		return &arg.Error{
			Arg:      ArgMaxPixels,
			Reason:   arg.ReasonRange,
			Expected: fmt.Sprintf("at least min_pixels=%d", lo),
			Actual:   fmt.Sprintf("%d", hi),
		}
	}
	return nil
}
