// Package schema extracts the declared input channels of a parsed pipeline
// script from the engine's own metadata, without executing any tasks.
package schema

import (
	"go.uber.org/zap"

	"github.com/mathysgrapotte/gonf/pkg/engine"
)

// ChannelParam is one named component of an input channel.
type ChannelParam struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// ChannelSpec describes one declared input channel. A composite channel
// (tuple) lists one param per component; a simple channel lists exactly one.
type ChannelSpec struct {
	Type   string         `json:"type"`
	Params []ChannelParam `json:"params"`
}

// InputChannels returns the input channels declared by the script behind the
// loader, in declaration order. The loader must have parsed the script
// already.
//
// The script is forced into module interpretation so its processes register
// without a workflow entry point. Engine metadata is populated lazily: if no
// process names are visible yet, the script body is run once with the module
// flag raised and restored afterwards. A script with no processes yields an
// empty slice, not an error.
func InputChannels(loader *engine.Loader, logger *zap.Logger) ([]ChannelSpec, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := loader.SetModule(true); err != nil {
		return nil, err
	}
	script, err := loader.Script()
	if err != nil {
		return nil, err
	}
	meta, err := script.Meta()
	if err != nil {
		return nil, err
	}

	names, err := meta.ProcessNames()
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		names, err = populateAndRetry(loader, meta)
		if err != nil {
			return nil, err
		}
	}
	if len(names) == 0 {
		logger.Debug("no processes found in script")
		return []ChannelSpec{}, nil
	}

	var specs []ChannelSpec
	for _, name := range names {
		proc, err := meta.Process(name)
		if err != nil {
			return nil, err
		}
		procSpecs, err := processChannels(proc)
		if err != nil {
			return nil, err
		}
		specs = append(specs, procSpecs...)
	}
	return specs, nil
}

// populateAndRetry runs the script body once to populate process metadata,
// keeping the module flag raised for the duration and restoring it after.
func populateAndRetry(loader *engine.Loader, meta *engine.Meta) ([]string, error) {
	wasModule, err := meta.IsModule()
	if err != nil {
		return nil, err
	}
	if err := meta.SetModule(true); err != nil {
		return nil, err
	}
	runErr := loader.RunScript()
	if restoreErr := meta.SetModule(wasModule); restoreErr != nil && runErr == nil {
		runErr = restoreErr
	}
	if runErr != nil {
		return nil, runErr
	}
	return meta.ProcessNames()
}

func processChannels(proc *engine.ProcessDef) ([]ChannelSpec, error) {
	inputs, err := proc.Inputs()
	if err != nil {
		return nil, err
	}
	specs := make([]ChannelSpec, 0, len(inputs))
	for _, input := range inputs {
		spec, err := channelSpec(input)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func channelSpec(input *engine.InputDef) (ChannelSpec, error) {
	typeName, err := input.TypeName()
	if err != nil {
		return ChannelSpec{}, err
	}
	spec := ChannelSpec{Type: typeName, Params: []ChannelParam{}}

	inner, err := input.Inner()
	if err != nil {
		return ChannelSpec{}, err
	}
	if inner != nil {
		for _, component := range inner {
			componentType, err := component.TypeName()
			if err != nil {
				return ChannelSpec{}, err
			}
			componentName, err := component.Name()
			if err != nil {
				return ChannelSpec{}, err
			}
			spec.Params = append(spec.Params, ChannelParam{Type: componentType, Name: componentName})
		}
		return spec, nil
	}

	name, err := input.Name()
	if err != nil {
		return ChannelSpec{}, err
	}
	spec.Params = append(spec.Params, ChannelParam{Type: typeName, Name: name})
	return spec, nil
}
