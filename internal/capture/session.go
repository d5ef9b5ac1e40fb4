package capture

import "strings"

// DeriveSessionID builds the stable conversation id for an app + window
// title pair. Repeated captures of the same chat must map to the same id,
// so the title is normalized: lowercased, trimmed, inner whitespace
// collapsed.
func DeriveSessionID(appName, title string) string {
	app := strings.ToLower(strings.TrimSpace(appName))
	if app == "" {
		app = "unknown"
	}

	norm := normalizeTitle(title)
	if norm == "" {
		norm = "untitled"
	}

	return app + ":" + norm
}

func normalizeTitle(title string) string {
	fields := strings.Fields(strings.ToLower(title))
	return strings.Join(fields, " ")
}
