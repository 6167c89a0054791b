package cluster

import (
	"io"

	"github.com/hashicorp/go-hclog"
)

// newRaftLogger creates the hclog.Logger Raft logs through.
// Raft is silent unless a level other than hclog.Off is requested.
func newRaftLogger(output io.Writer, level hclog.Level) hclog.Logger {
	if level == hclog.Off {
		output = io.Discard
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:   "raft",
		Level:  level,
		Output: output,
	})
}
