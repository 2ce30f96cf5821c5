package views

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// LookbackStart returns the lower bound of the view window: the first day of
// now's month minus months calendar months, at midnight in now's location.
func LookbackStart(now time.Time, months int) time.Time {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return first.AddDate(0, -months, 0)
}

// WindowStart evaluates the set's window predicate against clock.
func (s *Set) WindowStart(clock clockwork.Clock) time.Time {
	return LookbackStart(clock.Now(), s.params.LookbackMonths)
}
