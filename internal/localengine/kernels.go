package localengine

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/vk/accgraph/internal/ops"
	"github.com/vk/accgraph/internal/opspec"
	"github.com/vk/accgraph/internal/tensor"
	"golang.org/x/sync/errgroup"
)

type sampleFunc func(t *tensor.Tensor) (*tensor.Tensor, error)

type kernel struct {
	fused bool
	// uniform kernels need every sample of the batch to share one shape.
	uniform bool
	prepare func(spec *opspec.Spec) (sampleFunc, error)
}

var kernels = map[string]kernel{
	ops.KindToTensor:                    {prepare: prepareToTensor},
	ops.KindResizeCrop:                  {prepare: prepareResizeCrop},
	ops.KindNormalize:                   {uniform: true, prepare: prepareNormalize},
	ops.KindToTensorResizeCropNormalize: {fused: true, prepare: prepareFused},
}

func (k kernel) runBatch(ctx context.Context, spec *opspec.Spec, in *tensor.Batch, threads int) (*tensor.Batch, error) {
	if in.Len() == 0 {
		return nil, errors.New("empty batch")
	}
	if !in.Homogeneous() {
		return nil, errors.New("samples of the batch mix dtypes or layouts")
	}
	if k.uniform && !in.Uniform() {
		return nil, errors.New("samples of the batch have different shapes")
	}
	fn, err := k.prepare(spec)
	if err != nil {
		return nil, err
	}

	out := make([]*tensor.Tensor, in.Len())
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(threads)
	for i, t := range in.Tensors {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r, err := fn(t)
			if err != nil {
				return fmt.Errorf("sample %d: %w", i, err)
			}
			out[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return tensor.NewBatch(out...), nil
}

func stringArg(spec *opspec.Spec, name, def string) string {
	if v, ok := spec.Arg(name); ok {
		return v.AsString()
	}
	return def
}

func floatArg(spec *opspec.Spec, name string, def float64) float64 {
	if v, ok := spec.Arg(name); ok {
		return v.AsFloat()
	}
	return def
}

func shapeFor(layout tensor.Layout, h, w, c int) []int {
	if layout == tensor.LayoutNCHW {
		return []int{c, h, w}
	}
	return []int{h, w, c}
}

func prepareToTensor(spec *opspec.Spec) (sampleFunc, error) {
	layout, err := tensor.ParseLayout(stringArg(spec, ops.ArgLayout, ops.LayoutNCHW))
	if err != nil {
		return nil, err
	}
	return func(t *tensor.Tensor) (*tensor.Tensor, error) {
		return toTensor(t, layout)
	}, nil
}

func toTensor(t *tensor.Tensor, layout tensor.Layout) (*tensor.Tensor, error) {
	if t.DType != tensor.DTypeUint8 || t.Layout != tensor.LayoutNHWC {
		return nil, fmt.Errorf("expects uint8 NHWC input, got %s", t)
	}
	h, w, c := t.Dims()
	scaled := make([]float32, len(t.Data))
	for i, v := range t.Data {
		scaled[i] = v / 255
	}
	return tensor.FromHWC(h, w, c, scaled, tensor.DTypeFloat32, layout), nil
}

type resizeCropParams struct {
	resizeH, resizeW int
	cropH, cropW     int
	posX, posY       float64
	round            bool
}

func parseResizeCrop(spec *opspec.Spec) (resizeCropParams, error) {
	var p resizeCropParams
	if mode := stringArg(spec, ops.ArgInterpolationMode, ops.InterpolateBilinear); mode != ops.InterpolateBilinear {
		return p, fmt.Errorf("%s interpolation is not supported", mode)
	}
	rv, ok := spec.Arg(ops.ArgResize)
	if !ok || rv.Len() != 2 {
		return p, errors.New("resize must hold two sizes")
	}
	resize := rv.IntSlice()
	crop := resize
	if cv, ok := spec.Arg(ops.ArgCrop); ok && cv.Len() == 2 {
		crop = cv.IntSlice()
	}
	if crop[0] > resize[0] || crop[1] > resize[1] || crop[0] <= 0 || crop[1] <= 0 {
		return p, fmt.Errorf("crop %v does not fit resize %v", crop, resize)
	}
	p = resizeCropParams{
		resizeH: resize[0], resizeW: resize[1],
		cropH: crop[0], cropW: crop[1],
		posX:  floatArg(spec, ops.ArgCropPosX, 0.5),
		posY:  floatArg(spec, ops.ArgCropPosY, 0.5),
		round: stringArg(spec, ops.ArgRoundMode, ops.RoundTruncate) == ops.RoundRound,
	}
	return p, nil
}

func prepareResizeCrop(spec *opspec.Spec) (sampleFunc, error) {
	p, err := parseResizeCrop(spec)
	if err != nil {
		return nil, err
	}
	return func(t *tensor.Tensor) (*tensor.Tensor, error) {
		return resizeCrop(t, p)
	}, nil
}

func cropOffset(room int, pos float64, round bool) int {
	v := float64(room) * pos
	var off int
	if round {
		off = int(math.Round(v))
	} else {
		off = int(v)
	}
	return max(0, min(off, room))
}

// resizeCrop resizes bilinearly with half-pixel centers and keeps the crop
// window, computing only the pixels inside it.
func resizeCrop(t *tensor.Tensor, p resizeCropParams) (*tensor.Tensor, error) {
	if t.DType != tensor.DTypeFloat32 {
		return nil, fmt.Errorf("expects float32 input, got %s", t)
	}
	h, w, c := t.Dims()
	top := cropOffset(p.resizeH-p.cropH, p.posY, p.round)
	left := cropOffset(p.resizeW-p.cropW, p.posX, p.round)
	scaleY := float64(h) / float64(p.resizeH)
	scaleX := float64(w) / float64(p.resizeW)

	out := tensor.New(shapeFor(t.Layout, p.cropH, p.cropW, c), tensor.DTypeFloat32, t.Layout)
	for y := 0; y < p.cropH; y++ {
		y0, y1, dy := sourceSpan(y+top, scaleY, h)
		for x := 0; x < p.cropW; x++ {
			x0, x1, dx := sourceSpan(x+left, scaleX, w)
			for ch := 0; ch < c; ch++ {
				upper := float64(t.At(y0, x0, ch))*(1-dx) + float64(t.At(y0, x1, ch))*dx
				lower := float64(t.At(y1, x0, ch))*(1-dx) + float64(t.At(y1, x1, ch))*dx
				out.Data[out.Index(y, x, ch)] = float32(upper*(1-dy) + lower*dy)
			}
		}
	}
	return out, nil
}

// sourceSpan maps a destination coordinate onto the two neighbouring source
// coordinates and the weight of the second one.
func sourceSpan(dst int, scale float64, size int) (int, int, float64) {
	f := (float64(dst)+0.5)*scale - 0.5
	if f < 0 {
		f = 0
	}
	i0 := int(f)
	if i0 > size-1 {
		i0 = size - 1
	}
	i1 := min(i0+1, size-1)
	return i0, i1, f - float64(i0)
}

type normalizeParams struct {
	mean, std []float64
	scale     float64
}

func parseNormalize(spec *opspec.Spec) (normalizeParams, error) {
	mv, ok1 := spec.Arg(ops.ArgMean)
	sv, ok2 := spec.Arg(ops.ArgStddev)
	if !ok1 || !ok2 || mv.Len() != sv.Len() {
		return normalizeParams{}, errors.New("mean and stddev must be set with equal lengths")
	}
	return normalizeParams{mean: mv.FloatSlice(), std: sv.FloatSlice(), scale: floatArg(spec, ops.ArgScale, 1)}, nil
}

func prepareNormalize(spec *opspec.Spec) (sampleFunc, error) {
	p, err := parseNormalize(spec)
	if err != nil {
		return nil, err
	}
	return func(t *tensor.Tensor) (*tensor.Tensor, error) {
		return normalize(t, p)
	}, nil
}

func normalize(t *tensor.Tensor, p normalizeParams) (*tensor.Tensor, error) {
	if t.DType != tensor.DTypeFloat32 {
		return nil, fmt.Errorf("expects float32 input, got %s", t)
	}
	h, w, c := t.Dims()
	if c != len(p.mean) {
		return nil, fmt.Errorf("input has %d channels, mean has %d", c, len(p.mean))
	}
	out := t.Clone()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			for ch := 0; ch < c; ch++ {
				i := t.Index(y, x, ch)
				out.Data[i] = float32((float64(t.Data[i]) - p.mean[ch]) / p.std[ch] * p.scale)
			}
		}
	}
	return out, nil
}

// prepareFused composes the three stage kernels so the fused operator gives
// the same result as the unfused chain.
func prepareFused(spec *opspec.Spec) (sampleFunc, error) {
	layout, err := tensor.ParseLayout(stringArg(spec, ops.ArgLayout, ops.LayoutNCHW))
	if err != nil {
		return nil, err
	}
	rc, err := parseResizeCrop(spec)
	if err != nil {
		return nil, err
	}
	norm, err := parseNormalize(spec)
	if err != nil {
		return nil, err
	}
	return func(t *tensor.Tensor) (*tensor.Tensor, error) {
		tt, err := toTensor(t, layout)
		if err != nil {
			return nil, err
		}
		resized, err := resizeCrop(tt, rc)
		if err != nil {
			return nil, err
		}
		return normalize(resized, norm)
	}, nil
}
