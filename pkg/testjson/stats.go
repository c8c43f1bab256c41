package testjson

import "time"

// Stats totals a set of package results.
type Stats struct {
	Tests    int
	Passed   int
	Failed   int
	Skipped  int
	Packages int

	// Broken counts packages whose outcome is a failure for any reason.
	Broken   int
	Aborted  int
	Panicked int

	// Duration is the sum over packages; engines run one after another.
	Duration time.Duration
}

// Succeeded reports whether no package broke.
func (s Stats) Succeeded() bool { return s.Broken == 0 }

// Summarize totals results.
func Summarize(results []PackageResult) Stats {
	s := Stats{Packages: len(results)}
	for _, r := range results {
		s.Tests += len(r.Tests)
		s.Passed += r.Count(OutcomePass)
		s.Failed += r.Count(OutcomeFail)
		s.Skipped += r.Count(OutcomeSkip)
		s.Duration += r.Duration
		if r.Outcome() == OutcomeFail {
			s.Broken++
		}
		if r.Aborted != "" {
			s.Aborted++
		}
		if len(r.Panic) > 0 {
			s.Panicked++
		}
	}
	return s
}
