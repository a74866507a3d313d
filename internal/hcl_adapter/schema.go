package hcl_adapter

import "github.com/hashicorp/hcl/v2"

// fileRoot decodes the top-level blocks of a definition file.
type fileRoot struct {
	Pipelines []*pipelineBlock `hcl:"pipeline,block"`
	Remain    hcl.Body         `hcl:",remain"`
}

// pipelineBlock is the HCL schema of a `pipeline "<name>"` block.
type pipelineBlock struct {
	Name       string           `hcl:"name,label"`
	BatchSize  *int             `hcl:"batch_size,optional"`
	NumThreads *int             `hcl:"num_threads,optional"`
	QueueDepth *int             `hcl:"queue_depth,optional"`
	AutoFuse   *bool            `hcl:"auto_fuse,optional"`
	Outputs    []string         `hcl:"outputs"`
	Sources    []*sourceBlock   `hcl:"source,block"`
	Operators  []*operatorBlock `hcl:"operator,block"`
}

// sourceBlock is the HCL schema of a `source "<name>"` block.
type sourceBlock struct {
	Name   string  `hcl:"name,label"`
	Shape  []int   `hcl:"shape"`
	DType  *string `hcl:"dtype,optional"`
	Layout *string `hcl:"layout,optional"`
	Device *string `hcl:"device,optional"`
}

// operatorBlock is the HCL schema of an `operator "<kind>" "<name>"` block.
// Every attribute besides input is an operator argument.
type operatorBlock struct {
	Kind  string   `hcl:"kind,label"`
	Name  string   `hcl:"name,label"`
	Input string   `hcl:"input"`
	Args  hcl.Body `hcl:",remain"`
}
