package models

import "strings"

// CommandSeparator splits the segments of a command path.
const CommandSeparator = "."

// CommandPath is a menu position of the form segment(.segment)*. The empty
// path means the contact has no active bot interaction.
type CommandPath string

// IsEmpty reports whether there is no active bot interaction.
func (p CommandPath) IsEmpty() bool {
	return p == ""
}

// Child returns the path reached by answering input at this position.
func (p CommandPath) Child(input string) CommandPath {
	if p.IsEmpty() {
		return CommandPath(input)
	}
	return p + CommandSeparator + CommandPath(input)
}

// Depth is the number of segments in the path.
func (p CommandPath) Depth() int {
	if p.IsEmpty() {
		return 0
	}
	return strings.Count(string(p), CommandSeparator) + 1
}

// IsTopLevel reports whether the path has exactly one segment.
func (p CommandPath) IsTopLevel() bool {
	return p.Depth() == 1
}

// Parent returns the path without its last segment.
func (p CommandPath) Parent() CommandPath {
	i := strings.LastIndex(string(p), CommandSeparator)
	if i < 0 {
		return ""
	}
	return p[:i]
}

// Last returns the last segment of the path.
func (p CommandPath) Last() string {
	i := strings.LastIndex(string(p), CommandSeparator)
	return string(p[i+1:])
}

func (p CommandPath) String() string {
	return string(p)
}
