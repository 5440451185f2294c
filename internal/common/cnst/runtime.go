package cnst

// Runtime identifies how a function handler is resolved and invoked
type Runtime string

const (
	// RuntimeGo resolves handlers from the in-process registry
	RuntimeGo Runtime = "go"
	// RuntimeProcess runs the handler as an external executable
	RuntimeProcess Runtime = "process"
)

// Supported reports whether routes can be created for the runtime
func (r Runtime) Supported() bool {
	return r == RuntimeGo || r == RuntimeProcess
}
