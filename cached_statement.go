package asyncdb

// CachedStatement is a statement owned by the connection's cache. The
// connection closes it; callers only execute it.
type CachedStatement struct {
	s *Statement
}

func (cs *CachedStatement) Execute(params ...any) *Deferred {
	return cs.s.Execute(params...)
}

func (cs *CachedStatement) OnPrepared(callback func(err error)) *CachedStatement {
	cs.s.OnPrepared(callback)
	return cs
}

func (cs *CachedStatement) State() StatementState {
	return cs.s.State()
}

func (cs *CachedStatement) Query() string {
	return cs.s.query
}
