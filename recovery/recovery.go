// Package recovery decides what the scanner and parser do when a document
// is malformed.
package recovery

import "fmt"

// Strategy is consulted for every syntax error found while reading a
// document. It is called from one goroutine only.
type Strategy interface {
	OnError(err error, loc Location) Action
}

// Location identifies where an error was found. Component names the layers
// that reported it, outermost first.
type Location struct {
	ByteOffset int64
	ObjectNum  int
	ObjectGen  int
	Component  string
}

func (l Location) String() string {
	if l.ObjectNum > 0 {
		return fmt.Sprintf("%s: object %d %d", l.Component, l.ObjectNum, l.ObjectGen)
	}
	return fmt.Sprintf("%s: offset %d", l.Component, l.ByteOffset)
}

type Action int

const (
	// ActionFail aborts the load with the error.
	ActionFail Action = iota
	// ActionSkip drops the offending object.
	ActionSkip
	// ActionFix repairs the object where the caller can, e.g. by closing an
	// unterminated dictionary.
	ActionFix
)

func (a Action) String() string {
	switch a {
	case ActionSkip:
		return "skip"
	case ActionFix:
		return "fix"
	default:
		return "fail"
	}
}
