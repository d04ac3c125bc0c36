package taskctx

// LocalStorage gives a task a small per-task key/value store that lives for
// the task's entire lifetime, independent of any goroutine-local state.
// Unlike Go's context.Context values it is mutable, matching the task-local
// storage slot userver's task_context.hpp exposes for middleware and
// diagnostics to stash things like a logging span or a request ID.

// SetLocal stores value under key for the lifetime of the task.
func (c *Context) SetLocal(key, value any) {
	c.localMu.Lock()
	defer c.localMu.Unlock()
	if c.local == nil {
		c.local = make(map[any]any)
	}
	c.local[key] = value
}

// GetLocal retrieves a value previously stored with SetLocal.
func (c *Context) GetLocal(key any) (any, bool) {
	c.localMu.Lock()
	defer c.localMu.Unlock()
	v, ok := c.local[key]
	return v, ok
}
