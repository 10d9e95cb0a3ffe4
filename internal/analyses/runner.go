package analyses

// Runner abstracts "run this asynchronously" so job execution can be detached
// from the HTTP request in production and run inline in tests.
type Runner interface {
	Go(task func())
}

// GoRunner executes tasks on a fresh goroutine.
type GoRunner struct{}

func (GoRunner) Go(task func()) { go task() }

// InlineRunner executes tasks synchronously. Test use only.
type InlineRunner struct{}

func (InlineRunner) Go(task func()) { task() }
