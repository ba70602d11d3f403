// Package report implements the versioned report store: persisting a run's
// observations and metadata to a self-describing directory, and loading
// directories written by any supported schema version back into memory.
package report

import "regexp"

// templateVar matches ${name} template variables in location templates.
var templateVar = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Expand substitutes ${name} variables from vars into the template.
// Unrecognized variables are left unsubstituted, never an error.
func Expand(template string, vars map[string]string) string {
	return templateVar.ReplaceAllStringFunc(template, func(match string) string {
		name := templateVar.FindStringSubmatch(match)[1]
		if value, ok := vars[name]; ok {
			return value
		}
		return match
	})
}

// Identifiers returns the variable names referenced by the template, in
// order of first appearance.
func Identifiers(template string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, match := range templateVar.FindAllStringSubmatch(template, -1) {
		name := match[1]
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}
