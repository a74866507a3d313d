package ops

import (
	"github.com/vk/accgraph/internal/arg"
	"github.com/vk/accgraph/internal/fusion"
)

// FusionPatterns returns the chains the fusion rewriter may replace.
func FusionPatterns() []fusion.Pattern {
	return []fusion.Pattern{
		{
			Chain: []string{KindToTensor, KindResizeCrop, KindNormalize},
			Fused: KindToTensorResizeCropNormalize,
			Admit: admitter(KindToTensorResizeCropNormalize),
		},
	}
}

// admitter accepts merged arguments only when the fused kind would accept
// them as given, which excludes bicubic interpolation.
func admitter(kindName string) func(map[string]arg.Value) bool {
	k := catalog[kindName]
	return func(args map[string]arg.Value) bool {
		return validateMerged(k, args) == nil
	}
}

func validateMerged(k *kind, args map[string]arg.Value) error {
	if err := checkArgNames(k, args); err != nil {
		return err
	}
	for _, p := range k.params {
		v, ok := args[p.desc.Name]
		if !ok {
			if p.desc.Optional {
				continue
			}
			return &arg.Error{Op: k.name, Arg: p.desc.Name, Reason: arg.ReasonMissing, Expected: "a value"}
		}
		if _, _, err := arg.Validate(p.desc, v); err != nil {
			return err
		}
	}
	for _, check := range k.checks {
		if err := check(args); err != nil {
			return err
		}
	}
	return nil
}
