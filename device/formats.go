package device

import "sort"

// StreamingFormat identifies a driver-native streaming format.
type StreamingFormat int

// Streaming formats. FormatUnknown covers anything the driver reports that
// this core does not recognize; unrecognized formats sort last.
const (
	FormatUnknown StreamingFormat = iota
	FormatFlirFile
	FormatArgb
	FormatDual
)

// String returns the driver-native format token.
func (f StreamingFormat) String() string {
	switch f {
	case FormatFlirFile:
		return "FlirFileFormat"
	case FormatArgb:
		return "Argb"
	case FormatDual:
		return "Dual"
	default:
		return "Unknown"
	}
}

// Label returns the user-facing label for a format.
func (f StreamingFormat) Label() string {
	switch f {
	case FormatFlirFile:
		return "Radiométrico"
	case FormatArgb:
		return "Visual"
	case FormatDual:
		return "Dual"
	default:
		return f.String()
	}
}

// Kind returns the camera kind a format negotiates to.
func (f StreamingFormat) Kind() (CameraKind, bool) {
	switch f {
	case FormatFlirFile:
		return KindThermal, true
	case FormatArgb:
		return KindVisual, true
	case FormatDual:
		return KindDual, true
	default:
		return KindThermal, false
	}
}

// FormatByLabel maps a user-facing label (or the raw format token) back to a
// format.
func FormatByLabel(label string) (StreamingFormat, bool) {
	for _, f := range []StreamingFormat{FormatFlirFile, FormatArgb, FormatDual} {
		if f.Label() == label || f.String() == label {
			return f, true
		}
	}
	return FormatUnknown, false
}

// formatPriority ranks formats for selection: thermal-radiometric first,
// dual second, pure-visual third, unrecognized last.
func formatPriority(f StreamingFormat) int {
	switch f {
	case FormatFlirFile:
		return 0
	case FormatDual:
		return 1
	case FormatArgb:
		return 2
	default:
		return 3
	}
}

// SortFormats returns the formats ordered by priority. The input slice is
// not modified.
func SortFormats(formats []StreamingFormat) []StreamingFormat {
	out := make([]StreamingFormat, len(formats))
	copy(out, formats)
	sort.SliceStable(out, func(i, j int) bool {
		return formatPriority(out[i]) < formatPriority(out[j])
	})
	return out
}

// FormatOption is the resolved view of one supported format, preserving the
// driver's original index.
type FormatOption struct {
	Index  int    `json:"index"`
	Name   string `json:"name"`
	Label  string `json:"label"`
	Format StreamingFormat
}

// FormatOptions builds the prioritized option list from the formats a
// device reports.
func FormatOptions(formats []StreamingFormat) []FormatOption {
	opts := make([]FormatOption, 0, len(formats))
	for i, f := range formats {
		opts = append(opts, FormatOption{
			Index:  i,
			Name:   f.String(),
			Label:  f.Label(),
			Format: f,
		})
	}
	sort.SliceStable(opts, func(i, j int) bool {
		return formatPriority(opts[i].Format) < formatPriority(opts[j].Format)
	})
	return opts
}
