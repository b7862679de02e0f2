//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2026 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

package bundle

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/weaviate/idvbundles/entities/bundle"
)

var macroPattern = regexp.MustCompile(`\$\{([^}]*)\}`)

// MacroLimits bound the unknown tokens a document may carry before it is
// considered not to be a bundle at all.
type MacroLimits struct {
	MaxUnknown int
	MaxLength  int
}

// DefaultMacroLimits are used when the configuration leaves them unset.
var DefaultMacroLimits = MacroLimits{MaxUnknown: 20, MaxLength: 100}

// substituteMacros replaces every ${name} with values[name] and returns the
// distinct names it could not resolve, in order of first appearance.
func substituteMacros(text string, values map[string]string) (string, []string) {
	var unknown []string
	seen := map[string]bool{}
	out := macroPattern.ReplaceAllStringFunc(text, func(tok string) string {
		name := tok[2 : len(tok)-1]
		if v, ok := values[name]; ok {
			return v
		}
		if !seen[name] {
			seen[name] = true
			unknown = append(unknown, name)
		}
		return tok
	})
	return out, unknown
}

// resolveMacros substitutes the macro table and the caller's overrides
// into text and prompts for whatever is left.
func resolveMacros(text string, table, overrides map[string]string, limits MacroLimits,
	ui Prompter, op, path string,
) (string, error) {
	values := make(map[string]string, len(table)+len(overrides))
	for k, v := range table {
		values[k] = v
	}
	for k, v := range overrides {
		values[k] = v
	}

	out, unknown := substituteMacros(text, values)
	if len(unknown) == 0 {
		return out, nil
	}
	if len(unknown) > limits.MaxUnknown {
		return "", bundle.NewError(bundle.MacroOverflow, op, path,
			fmt.Errorf("%d unknown macros", len(unknown)))
	}
	for _, name := range unknown {
		if len(name) > limits.MaxLength {
			return "", bundle.NewError(bundle.MacroOverflow, op, path,
				fmt.Errorf("macro %.20q... is %d characters long", name, len(name)))
		}
	}

	if ui == nil {
		return "", bundle.NewError(bundle.MacroResolutionAborted, op, path,
			fmt.Errorf("unresolved macros: %s", strings.Join(unknown, ", ")))
	}
	prompted, ok := ui.PromptMacroValues(unknown)
	if !ok {
		return "", bundle.NewError(bundle.MacroResolutionAborted, op, path, nil)
	}
	out, _ = substituteMacros(out, prompted)
	return out, nil
}

// macroValue is one path macro and the directory it stands for.
type macroValue struct {
	macro string
	value string
}

// rebindPath substitutes the first macro found in p. Candidates are tried
// in order and the first one that names an existing file wins; otherwise
// the first substitution is kept. A path without macros is returned as is.
func rebindPath(p string, candidates []macroValue, exists func(string) bool) string {
	fallback := ""
	for _, c := range candidates {
		if c.value == "" || !strings.Contains(p, c.macro) {
			continue
		}
		resolved := strings.ReplaceAll(p, c.macro, strings.TrimRight(c.value, `/\`))
		if exists(resolved) {
			return resolved
		}
		if fallback == "" {
			fallback = resolved
		}
	}
	if fallback == "" {
		return p
	}
	return fallback
}
