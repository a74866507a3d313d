package tensor

import (
	"errors"
	"fmt"
	"slices"
)

// Batch is the ordered list of samples carried by one node in one run.
type Batch struct {
	Tensors []*Tensor `json:"tensors"`
}

// NewBatch wraps the given samples.
func NewBatch(ts ...*Tensor) *Batch {
	return &Batch{Tensors: ts}
}

// Repeat returns a batch of n deep copies of t.
func Repeat(t *Tensor, n int) *Batch {
	b := &Batch{Tensors: make([]*Tensor, n)}
	for i := range b.Tensors {
		b.Tensors[i] = t.Clone()
	}
	return b
}

// Len returns the number of samples.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Tensors)
}

// Validate checks that the batch is non-empty and that every sample is well
// formed. Samples may differ in shape, dtype and layout; operators decide
// whether they can handle that.
func (b *Batch) Validate() error {
	if b == nil {
		return errors.New("batch is nil")
	}
	if len(b.Tensors) == 0 {
		return errors.New("batch is empty")
	}
	for i, t := range b.Tensors {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("sample %d: %w", i, err)
		}
	}
	return nil
}

// Homogeneous reports whether every sample shares the dtype and layout of
// the first one.
func (b *Batch) Homogeneous() bool {
	for _, t := range b.Tensors[1:] {
		if t.DType != b.Tensors[0].DType || t.Layout != b.Tensors[0].Layout {
			return false
		}
	}
	return true
}

// Uniform reports whether every sample has the same shape.
func (b *Batch) Uniform() bool {
	for _, t := range b.Tensors[1:] {
		if !slices.Equal(t.Shape, b.Tensors[0].Shape) {
			return false
		}
	}
	return true
}

// Shape returns the shape shared by all samples, or nil when they differ.
func (b *Batch) Shape() []int {
	if b.Len() == 0 || !b.Uniform() {
		return nil
	}
	return slices.Clone(b.Tensors[0].Shape)
}

// Clone returns a deep copy.
func (b *Batch) Clone() *Batch {
	if b == nil {
		return nil
	}
	out := &Batch{Tensors: make([]*Tensor, len(b.Tensors))}
	for i, t := range b.Tensors {
		out.Tensors[i] = t.Clone()
	}
	return out
}

// Equal compares two batches sample by sample with the given tolerance.
func (b *Batch) Equal(o *Batch, tol float32) bool {
	if b.Len() != o.Len() {
		return false
	}
	for i := range b.Tensors {
		if !b.Tensors[i].Equal(o.Tensors[i], tol) {
			return false
		}
	}
	return true
}
