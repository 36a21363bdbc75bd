package models

// Theme is a selectable colour theme.
type Theme struct {
	Value string
	Label string
}

// AllThemes lists the themes a user can pick. The empty value follows the
// system light/dark preference.
var AllThemes = []Theme{
	{Value: "", Label: "System"},
	{Value: "midnight", Label: "Midnight"},
	{Value: "ocean", Label: "Ocean"},
	{Value: "forest", Label: "Forest"},
	{Value: "sunset", Label: "Sunset"},
	{Value: "nord", Label: "Nord"},
	{Value: "highcontrast", Label: "High Contrast"},
}

// IsValidTheme reports whether value names a known theme.
func IsValidTheme(value string) bool {
	for _, t := range AllThemes {
		if t.Value == value {
			return true
		}
	}
	return false
}
