package recovery

import (
	"fmt"

	"github.com/paradisepdf/pagekit/observability"
)

// Strict fails on the first error.
type Strict struct{}

func NewStrictStrategy() Strict { return Strict{} }

func (Strict) OnError(error, Location) Action { return ActionFail }

// DefaultMaxIssues bounds how much damage a lenient load accepts.
const DefaultMaxIssues = 256

// Issue is an error the lenient strategy recovered from.
type Issue struct {
	Location Location
	Err      error
}

func (i Issue) Error() string { return fmt.Sprintf("%s: %v", i.Location, i.Err) }

func (i Issue) Unwrap() error { return i.Err }

// Lenient repairs what it can and records every error as an Issue. Once
// MaxIssues errors have been recorded it fails, so a file that is mostly
// garbage is still rejected.
type Lenient struct {
	MaxIssues int
	Logger    observability.Logger
	issues    []Issue
}

func NewLenientStrategy() *Lenient {
	return &Lenient{MaxIssues: DefaultMaxIssues}
}

func (s *Lenient) OnError(err error, loc Location) Action {
	if s.MaxIssues > 0 && len(s.issues) >= s.MaxIssues {
		return ActionFail
	}
	s.issues = append(s.issues, Issue{Location: loc, Err: err})
	observability.OrNop(s.Logger).Debug("recovered",
		observability.String("at", loc.String()),
		observability.Error("err", err),
	)
	return ActionFix
}

// Issues returns the errors recovered from so far, in the order found.
func (s *Lenient) Issues() []Issue { return s.issues }
