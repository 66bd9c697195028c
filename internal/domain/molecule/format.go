package molecule

import "strings"

// Format is the textual representation a structure arrives in.
type Format int

const (
	// FormatLineNotation is a SMILES (or SMARTS) string.
	FormatLineNotation Format = iota
	// FormatConnectionTable is an MDL molfile block.
	FormatConnectionTable
)

func (f Format) String() string {
	if f == FormatConnectionTable {
		return "molfile"
	}
	return "smiles"
}

// connectionTableEnd terminates every MDL connection table.
const connectionTableEnd = "M  END"

// DetectFormat classifies text by the presence of the connection-table
// terminator. A line-notation string that happens to contain the token is
// misclassified and fails to parse as a connection table.
func DetectFormat(text string) Format {
	if strings.Contains(text, connectionTableEnd) {
		return FormatConnectionTable
	}
	return FormatLineNotation
}
