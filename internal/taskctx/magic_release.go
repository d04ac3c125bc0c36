//go:build !coro_debug

package taskctx

func (c *Context) armMagic()        {}
func (c *Context) killMagic()       {}
func (c *Context) checkMagicAlive() {}
