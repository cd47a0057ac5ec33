// Package templates renders the kiosk's server-side pages
package templates

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/a-h/templ"
)

// themeStyle renders theme variables as an inline :root rule, sorted so
// output is stable.
func themeStyle(vars map[string]string) string {
	var sb strings.Builder
	sb.WriteString(":root{")
	for _, k := range slices.Sorted(maps.Keys(vars)) {
		if !strings.HasPrefix(k, "--") {
			continue
		}
		fmt.Fprintf(&sb, "%s:%s;", templ.EscapeString(k), templ.EscapeString(vars[k]))
	}
	sb.WriteString("}")
	return sb.String()
}
