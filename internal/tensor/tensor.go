package tensor

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// DType is the element type a tensor claims to carry. Data is always stored
// as float32; uint8 tensors hold whole numbers in [0, 255].
type DType int

const (
	DTypeInvalid DType = iota
	DTypeUint8
	DTypeFloat32
)

func (d DType) String() string {
	switch d {
	case DTypeUint8:
		return "uint8"
	case DTypeFloat32:
		return "float32"
	default:
		return "invalid"
	}
}

// ParseDType is the inverse of DType.String.
func ParseDType(s string) (DType, error) {
	switch strings.ToLower(s) {
	case "uint8", "u8":
		return DTypeUint8, nil
	case "float32", "f32", "float":
		return DTypeFloat32, nil
	}
	return DTypeInvalid, fmt.Errorf("unknown dtype %q", s)
}

// Layout is the axis order of one sample.
type Layout int

const (
	LayoutInvalid Layout = iota
	// LayoutNHWC stores a sample as height, width, channels.
	LayoutNHWC
	// LayoutNCHW stores a sample as channels, height, width.
	LayoutNCHW
)

func (l Layout) String() string {
	switch l {
	case LayoutNHWC:
		return "NHWC"
	case LayoutNCHW:
		return "NCHW"
	default:
		return "invalid"
	}
}

// ParseLayout is the inverse of Layout.String.
func ParseLayout(s string) (Layout, error) {
	switch strings.ToUpper(s) {
	case "NHWC", "HWC":
		return LayoutNHWC, nil
	case "NCHW", "CHW":
		return LayoutNCHW, nil
	}
	return LayoutInvalid, fmt.Errorf("unknown layout %q", s)
}

// Tensor is one rank-3 sample.
type Tensor struct {
	Shape  []int     `json:"shape"`
	DType  DType     `json:"dtype"`
	Layout Layout    `json:"layout"`
	Data   []float32 `json:"data"`
}

// New returns a zero-filled tensor.
func New(shape []int, dtype DType, layout Layout) *Tensor {
	return Filled(shape, dtype, layout, 0)
}

// Filled returns a tensor with every element set to v.
func Filled(shape []int, dtype DType, layout Layout, v float32) *Tensor {
	n := 1
	for _, d := range shape {
		n *= d
	}
	if n < 0 {
		n = 0
	}
	data := make([]float32, n)
	if v != 0 {
		for i := range data {
			data[i] = v
		}
	}
	return &Tensor{Shape: slices.Clone(shape), DType: dtype, Layout: layout, Data: data}
}

// FromHWC lays out a sample given in HWC order into the requested layout.
func FromHWC(h, w, c int, hwc []float32, dtype DType, layout Layout) *Tensor {
	if layout == LayoutNHWC {
		return &Tensor{Shape: []int{h, w, c}, DType: dtype, Layout: layout, Data: slices.Clone(hwc)}
	}
	t := New([]int{c, h, w}, dtype, LayoutNCHW)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			for ch := 0; ch < c; ch++ {
				t.Data[t.Index(y, x, ch)] = hwc[(y*w+x)*c+ch]
			}
		}
	}
	return t
}

// Validate checks that the tensor is a well-formed rank-3 sample.
func (t *Tensor) Validate() error {
	if t == nil {
		return errors.New("tensor is nil")
	}
	if len(t.Shape) != 3 {
		return fmt.Errorf("expected rank 3, got shape %v", t.Shape)
	}
	n := 1
	for _, d := range t.Shape {
		if d <= 0 {
			return fmt.Errorf("non-positive dimension in shape %v", t.Shape)
		}
		n *= d
	}
	if len(t.Data) != n {
		return fmt.Errorf("shape %v needs %d elements, got %d", t.Shape, n, len(t.Data))
	}
	if t.DType != DTypeUint8 && t.DType != DTypeFloat32 {
		return fmt.Errorf("invalid dtype %d", t.DType)
	}
	if t.Layout != LayoutNHWC && t.Layout != LayoutNCHW {
		return fmt.Errorf("invalid layout %d", t.Layout)
	}
	return nil
}

// Dims returns height, width and channels regardless of layout.
func (t *Tensor) Dims() (h, w, c int) {
	if t.Layout == LayoutNCHW {
		return t.Shape[1], t.Shape[2], t.Shape[0]
	}
	return t.Shape[0], t.Shape[1], t.Shape[2]
}

// Index returns the offset into Data of pixel (y, x) channel c.
func (t *Tensor) Index(y, x, c int) int {
	h, w, ch := t.Dims()
	if t.Layout == LayoutNCHW {
		return (c*h+y)*w + x
	}
	return (y*w+x)*ch + c
}

// At returns the element at pixel (y, x) channel c.
func (t *Tensor) At(y, x, c int) float32 {
	return t.Data[t.Index(y, x, c)]
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	if t == nil {
		return nil
	}
	return &Tensor{Shape: slices.Clone(t.Shape), DType: t.DType, Layout: t.Layout, Data: slices.Clone(t.Data)}
}

// SameKind reports whether both tensors agree on shape, dtype and layout.
func (t *Tensor) SameKind(o *Tensor) bool {
	return t.DType == o.DType && t.Layout == o.Layout && slices.Equal(t.Shape, o.Shape)
}

// Equal reports whether both tensors are the same kind and every element
// differs by at most tol.
func (t *Tensor) Equal(o *Tensor, tol float32) bool {
	if t == nil || o == nil {
		return t == o
	}
	if !t.SameKind(o) || len(t.Data) != len(o.Data) {
		return false
	}
	for i := range t.Data {
		d := t.Data[i] - o.Data[i]
		if d > tol || d < -tol {
			return false
		}
	}
	return true
}

func (t *Tensor) String() string {
	return fmt.Sprintf("%s%v/%s", t.DType, t.Shape, t.Layout)
}

func (d DType) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *DType) UnmarshalText(b []byte) error {
	v, err := ParseDType(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

func (l Layout) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

func (l *Layout) UnmarshalText(b []byte) error {
	v, err := ParseLayout(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}
