package store

// preference keys
const (
	KeyDefaultPage    = "defaultPage"
	KeyHiddenPages    = "hiddenPages"
	KeyTheme          = "theme"
	KeyThemeVars      = "themeVars"
	KeyHiddenSessions = "hiddenSessionIds"
)

// SwipePages are the pages reachable by swiping, in swipe order. It is also
// the fallback order for the default page.
var SwipePages = []string{"/dashboard", "/spotify", "/resources"}

const DefaultTheme = "ocean"

type Theme struct {
	Name string            `json:"name"`
	Vars map[string]string `json:"vars"`
}

// Themes are the selectable color schemes, keyed by name.
var Themes = map[string]map[string]string{
	"ocean": {
		"--bg-1":          "#0f1626",
		"--bg-2":          "#142338",
		"--panel":         "rgba(16, 24, 38, 0.85)",
		"--panel-border":  "rgba(255, 255, 255, 0.08)",
		"--text":          "#e9edf3",
		"--muted":         "#a6b3c6",
		"--accent":        "#5ad1a2",
		"--accent-strong": "#37b07f",
	},
	"sunset": {
		"--bg-1":          "#2a0f1d",
		"--bg-2":          "#3a1e2e",
		"--panel":         "rgba(34, 16, 26, 0.88)",
		"--panel-border":  "rgba(255, 255, 255, 0.1)",
		"--text":          "#f7e9ee",
		"--muted":         "#d3b6c0",
		"--accent":        "#ebb76a",
		"--accent-strong": "#ff8f00",
	},
	"mono": {
		"--bg-1":          "#101418",
		"--bg-2":          "#1a1f24",
		"--panel":         "rgba(18, 22, 26, 0.9)",
		"--panel-border":  "rgba(255, 255, 255, 0.06)",
		"--text":          "#f1f3f5",
		"--muted":         "#b7bdc5",
		"--accent":        "#8fb1ff",
		"--accent-strong": "#5f8bff",
	},
}
