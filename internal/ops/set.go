package ops

import (
	"fmt"
	"slices"

	"github.com/vk/accgraph/internal/arg"
	"github.com/vk/accgraph/internal/nodeid"
	"github.com/vk/accgraph/internal/opspec"
	"github.com/zclconf/go-cty/cty"
)

// Args holds optional arguments for the typed builder methods.
type Args map[string]arg.Value

// Registry is the part of a node registry a Set needs.
type Registry interface {
	opspec.Registrar
	RegisterExternal(base, device string) nodeid.Node
}

// Set builds operator specs against one pipeline's registry.
type Set struct {
	reg Registry
}

// NewSet binds the catalog to reg.
func NewSet(reg Registry) *Set {
	return &Set{reg: reg}
}

// ExternalSource declares a node fed by the caller at run time. An empty
// device means nodeid.DefaultDevice.
func (s *Set) ExternalSource(name, device string) (*opspec.Spec, error) {
	if name == "" {
		return nil, &arg.Error{Op: KindExternalSource, Arg: "name", Reason: arg.ReasonMissing, Expected: "a source name"}
	}
	out := s.reg.RegisterExternal(name, device)
	return opspec.New(KindExternalSource, nil, []nodeid.Node{out}, nil), nil
}

// ToTensor converts uint8 HWC samples into float32 tensors scaled to [0, 1].
// Optional: layout.
func (s *Set) ToTensor(in nodeid.Node, extra Args) (*opspec.Spec, error) {
	return s.Build(KindToTensor, []nodeid.Node{in}, extra)
}

// ResizeCrop resizes to resize=[h, w] and crops to crop=[h, w]. Optional:
// crop, interpolation_mode, crop_pos_x, crop_pos_y, round_mode.
func (s *Set) ResizeCrop(in nodeid.Node, resize arg.Value, extra Args) (*opspec.Spec, error) {
	return s.Build(KindResizeCrop, []nodeid.Node{in}, with(extra, ArgResize, resize))
}

// Normalize computes (x - mean) / stddev * scale per channel. Optional: scale.
func (s *Set) Normalize(in nodeid.Node, mean, stddev arg.Value, extra Args) (*opspec.Spec, error) {
	return s.Build(KindNormalize, []nodeid.Node{in}, with(with(extra, ArgMean, mean), ArgStddev, stddev))
}

// ToTensorResizeCropNormalize is the fused form of ToTensor, ResizeCrop and
// Normalize.
func (s *Set) ToTensorResizeCropNormalize(in nodeid.Node, resize, mean, stddev arg.Value, extra Args) (*opspec.Spec, error) {
	args := with(with(with(extra, ArgResize, resize), ArgMean, mean), ArgStddev, stddev)
	return s.Build(KindToTensorResizeCropNormalize, []nodeid.Node{in}, args)
}

// QwenFusionOp is the patch-partitioning preprocessor of Qwen2-VL models.
func (s *Set) QwenFusionOp(in nodeid.Node, mean, stddev arg.Value, extra Args) (*opspec.Spec, error) {
	return s.Build(KindQwenFusionOp, []nodeid.Node{in}, with(with(extra, ArgMean, mean), ArgStddev, stddev))
}

func with(args Args, name string, v arg.Value) Args {
	out := make(Args, len(args)+1)
	for k, a := range args {
		out[k] = a
	}
	out[name] = v
	return out
}

// Build creates a spec of any catalog kind. Arguments not declared by the
// kind are rejected; omitted optional arguments take their defaults.
func (s *Set) Build(kindName string, inputs []nodeid.Node, args map[string]arg.Value) (*opspec.Spec, error) {
	k, ok := catalog[kindName]
	if !ok {
		return nil, &arg.Error{Op: kindName, Reason: arg.ReasonUnknown, Expected: "a known operator kind"}
	}
	if k.external {
		return nil, &arg.Error{Op: kindName, Reason: arg.ReasonUnknown, Expected: "an operator kind, sources are declared with ExternalSource"}
	}
	if err := checkArgNames(k, args); err != nil {
		return nil, err
	}
	if len(inputs) != 1 {
		return nil, &arg.Error{Op: kindName, Arg: "inputs", Reason: arg.ReasonCount, Expected: "1 input", Actual: fmt.Sprintf("%d", len(inputs))}
	}

	b := opspec.NewBuilder(s.reg, k.name)
	for _, in := range inputs {
		b.Input(in)
	}
	resolved := make(map[string]arg.Value)
	for _, p := range k.params {
		raw := args[p.desc.Name]
		if raw.IsEmpty() && p.def != nil {
			raw = p.def(resolved)
		}
		if err := b.Arg(p.desc, raw).Err(); err != nil {
			return nil, err
		}
		if v, ok := b.Value(p.desc.Name); ok {
			resolved[p.desc.Name] = v
		}
	}
	if err := b.Err(); err != nil {
		return nil, err
	}
	for _, check := range k.checks {
		b.Check(check)
	}
	return b.Output(k.output, "").Build()
}

// BuildCty is Build for arguments decoded from a definition file. Each value
// is read with the element type the kind declares for it.
func (s *Set) BuildCty(kindName string, inputs []nodeid.Node, args map[string]cty.Value) (*opspec.Spec, error) {
	k, ok := catalog[kindName]
	if !ok {
		return nil, &arg.Error{Op: kindName, Reason: arg.ReasonUnknown, Expected: "a known operator kind"}
	}
	converted := make(map[string]arg.Value, len(args))
	for _, name := range sortedKeys(args) {
		p, ok := k.param(name)
		if !ok {
			return nil, unknownArg(k, name)
		}
		v, err := arg.FromCty(args[name], p.desc.Type)
		if err != nil {
			return nil, &arg.Error{Op: kindName, Arg: name, Reason: arg.ReasonType, Expected: p.desc.Type.String(), Actual: err.Error()}
		}
		converted[name] = v
	}
	return s.Build(kindName, inputs, converted)
}

func checkArgNames[V any](k *kind, args map[string]V) error {
	for _, name := range sortedKeys(args) {
		if _, ok := k.param(name); !ok {
			return unknownArg(k, name)
		}
	}
	return nil
}

func unknownArg(k *kind, name string) error {
	names := make([]string, len(k.params))
	for i, p := range k.params {
		names[i] = p.desc.Name
	}
	return &arg.Error{Op: k.name, Arg: name, Reason: arg.ReasonUnknown, Expected: fmt.Sprintf("one of %v", names)}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
