// Package inputs validates user-provided input groups against a script's
// declared channels and injects them into a session's parameter store.
package inputs

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mathysgrapotte/gonf/pkg/engine"
	gonferrors "github.com/mathysgrapotte/gonf/pkg/errors"
	"github.com/mathysgrapotte/gonf/pkg/schema"
)

// Group is one positional input group: parameter name to value.
type Group map[string]interface{}

const rule = "======================================================================"

// Validate checks the provided groups against the declared channels: group
// count must match the channel count exactly, and each group's key set must
// equal its channel's declared parameter names, no more and no less. The
// returned error carries a multi-line diagnostic rendering both the expected
// structure and what was provided.
func Validate(channels []schema.ChannelSpec, groups []Group) error {
	if len(channels) == 0 {
		if len(groups) > 0 {
			return gonferrors.NewError(gonferrors.CodeSchemaMismatch,
				"Module has no inputs, but inputs were provided", nil)
		}
		return nil
	}

	if len(groups) != len(channels) {
		return gonferrors.NewError(gonferrors.CodeSchemaMismatch,
			countError(channels, groups), nil)
	}

	for idx, group := range groups {
		if err := validateGroup(group, channels[idx], idx); err != nil {
			return err
		}
	}
	return nil
}

// Inject writes validated groups into the session parameter store. Validate
// must have passed first: Inject itself validates again and writes nothing
// if any group fails, so a partially injected session can never run.
func Inject(session *engine.Session, channels []schema.ChannelSpec, groups []Group) error {
	if err := Validate(channels, groups); err != nil {
		return err
	}
	for idx, group := range groups {
		for _, param := range channels[idx].Params {
			value, ok := group[param.Name]
			if !ok {
				continue
			}
			if err := session.PutParam(param.Name, value, param.Type); err != nil {
				return gonferrors.NewError(gonferrors.CodeInjection,
					fmt.Sprintf("injecting parameter %q from input group %d", param.Name, idx+1), err)
			}
		}
	}
	return nil
}

func validateGroup(group Group, channel schema.ChannelSpec, idx int) error {
	expected := make(map[string]bool, len(channel.Params))
	for _, p := range channel.Params {
		expected[p.Name] = true
	}

	var missing []string
	for name := range expected {
		if _, ok := group[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return gonferrors.NewError(gonferrors.CodeSchemaMismatch,
			groupError("Missing required parameters", "Missing parameters", missing, channel, idx), nil)
	}

	var extra []string
	for name := range group {
		if !expected[name] {
			extra = append(extra, name)
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		return gonferrors.NewError(gonferrors.CodeSchemaMismatch,
			groupError("Unexpected parameters", "Unexpected parameters", extra, channel, idx), nil)
	}
	return nil
}

func countError(channels []schema.ChannelSpec, groups []Group) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\n", rule)
	b.WriteString("ERROR: Incorrect number of input groups\n")
	fmt.Fprintf(&b, "%s\n\n", rule)
	fmt.Fprintf(&b, "Expected %d input group(s), but got %d\n\n", len(channels), len(groups))
	b.WriteString("Expected input structure:\n")
	b.WriteString(expectedStructure(channels))
	if len(groups) > 0 {
		b.WriteString("\nProvided inputs:\n")
		b.WriteString(providedInputs(groups))
	}
	fmt.Fprintf(&b, "\n%s\n", rule)
	return b.String()
}

func groupError(title, label string, names []string, channel schema.ChannelSpec, idx int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\n", rule)
	fmt.Fprintf(&b, "ERROR: %s in input group %d\n", title, idx+1)
	fmt.Fprintf(&b, "%s\n\n", rule)
	fmt.Fprintf(&b, "%s: %s\n\n", label, strings.Join(names, ", "))
	fmt.Fprintf(&b, "Input group %d expects (type: %s):\n", idx+1, channel.Type)
	for _, p := range channel.Params {
		fmt.Fprintf(&b, "  - %s(%s)\n", p.Type, p.Name)
	}
	fmt.Fprintf(&b, "\n%s\n", rule)
	return b.String()
}

func expectedStructure(channels []schema.ChannelSpec) string {
	var b strings.Builder
	b.WriteString("inputs=[\n")
	for idx, channel := range channels {
		fmt.Fprintf(&b, "    # Group %d (type: %s)\n", idx+1, channel.Type)
		b.WriteString("    {")
		parts := make([]string, 0, len(channel.Params))
		for _, p := range channel.Params {
			parts = append(parts, fmt.Sprintf("'%s': <value>", p.Name))
		}
		b.WriteString(strings.Join(parts, ", "))
		b.WriteString("},\n")
	}
	b.WriteString("]\n")
	return b.String()
}

func providedInputs(groups []Group) string {
	var b strings.Builder
	b.WriteString("inputs=[\n")
	for idx, group := range groups {
		fmt.Fprintf(&b, "    # Group %d\n", idx+1)
		keys := make([]string, 0, len(group))
		for k := range group {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("'%s': %v", k, group[k]))
		}
		fmt.Fprintf(&b, "    {%s},\n", strings.Join(parts, ", "))
	}
	b.WriteString("]\n")
	return b.String()
}
