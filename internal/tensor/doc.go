// Package tensor holds the batched sample data that flows in and out of a
// pipeline run.
//
// A Tensor is one image-like sample of rank 3 stored densely as float32,
// laid out as HWC or CHW. A Batch is an ordered list of samples fed to or
// produced by one external or output node.
package tensor
