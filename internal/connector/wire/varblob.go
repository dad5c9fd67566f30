package wire

import (
	"regexp"
	"strconv"
)

// varAssignRe matches one `var name='value';` assignment of the status blob.
var varAssignRe = regexp.MustCompile(`var\s+([A-Za-z_]\w*)\s*=\s*'([^']*)'\s*;`)

// ParseVarBlob parses a semicolon-delimited variable-assignment blob into a
// flat string map. Anything that is not a well-formed assignment is ignored.
func ParseVarBlob(payload []byte) map[string]string {
	vars := make(map[string]string)
	for _, match := range varAssignRe.FindAllSubmatch(payload, -1) {
		vars[string(match[1])] = string(match[2])
	}
	return vars
}

// StatusFields is the typed subset of status variables the pipeline uses.
// Unknown variables in the blob are ignored, not rejected.
type StatusFields struct {
	In       int
	Out      int
	Sum      int
	Capacity int
	Alarm    int
}

// CoerceStatus type-coerces the relevant status counters. A missing or
// non-numeric variable coerces to zero.
func CoerceStatus(vars map[string]string) StatusFields {
	return StatusFields{
		In:       intVar(vars, "in"),
		Out:      intVar(vars, "out"),
		Sum:      intVar(vars, "sum"),
		Capacity: intVar(vars, "capacity"),
		Alarm:    intVar(vars, "alarm"),
	}
}

func intVar(vars map[string]string, name string) int {
	v, err := strconv.Atoi(vars[name])
	if err != nil {
		return 0
	}
	return v
}
