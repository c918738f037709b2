package pipeline

import "fmt"

// Context accumulates stage outputs over one run, keyed by stage name.
// It grows monotonically as the pipeline advances; recorded outputs are
// never mutated. Each run owns its own Context, so no locking is needed.
type Context struct {
	names   []string
	outputs map[string]string
}

// NewContext creates an empty run context.
func NewContext() *Context {
	return &Context{outputs: make(map[string]string)}
}

// Add appends a stage output. Recording the same stage twice is a
// programming error and is rejected.
func (c *Context) Add(stage, output string) error {
	if _, ok := c.outputs[stage]; ok {
		return fmt.Errorf("context already holds output for stage %s", stage)
	}
	c.names = append(c.names, stage)
	c.outputs[stage] = output
	return nil
}

// Get returns the recorded output of a stage.
func (c *Context) Get(stage string) (string, bool) {
	output, ok := c.outputs[stage]
	return output, ok
}

// Names returns stage names in recording order.
func (c *Context) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Len returns the number of recorded stage outputs.
func (c *Context) Len() int {
	return len(c.names)
}

// Snapshot returns a copy of the accumulated outputs for template use.
func (c *Context) Snapshot() map[string]string {
	out := make(map[string]string, len(c.outputs))
	for k, v := range c.outputs {
		out[k] = v
	}
	return out
}
