package testutil

// StepRunner runs a named subtest. testify suites satisfy it through
// suite.Suite.Run, which rebinds s.T() to the step so assertions fail the
// step rather than the parent test.
type StepRunner interface {
	Run(name string, fn func()) bool
}

// Given, When, Then and And label the steps of an admission scenario. A step
// that fails stops the scenario: later steps are skipped.
func Given(r StepRunner, desc string, fn func()) bool {
	return r.Run("Given "+desc, fn)
}

func When(r StepRunner, desc string, fn func()) bool {
	return r.Run("When "+desc, fn)
}

func Then(r StepRunner, desc string, fn func()) bool {
	return r.Run("Then "+desc, fn)
}

func And(r StepRunner, desc string, fn func()) bool {
	return r.Run("And "+desc, fn)
}
