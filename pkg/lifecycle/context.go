package lifecycle

// Context is the record threaded through the machine: the Connection it drives
// and the reasons of the last rejection and disconnection.
//
// Once the Context is handed to a running Machine its reason fields belong to
// the loop goroutine. Read them through Machine.Context, which returns a copy.
type Context struct {
	Conn               *Connection
	RejectedReason     Reason
	DisconnectedReason Reason
}

// NewContext wraps conn with both reasons cleared.
func NewContext(conn *Connection) *Context {
	return &Context{Conn: conn}
}

func (c *Context) clearRejected() {
	c.RejectedReason = Reason{}
}

func (c *Context) clearDisconnected() {
	c.DisconnectedReason = Reason{}
}
