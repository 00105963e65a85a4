package relay

// connLimiter bounds the number of chat requests being served at
// once. Each request holds the remote stream open, so the bound also
// caps outbound connections. A zero or negative max disables the
// limit.
type connLimiter struct {
	sem chan struct{}
}

func newConnLimiter(max int) *connLimiter {
	if max <= 0 {
		return &connLimiter{}
	}
	return &connLimiter{sem: make(chan struct{}, max)}
}

func (l *connLimiter) Acquire() bool {
	if l.sem == nil {
		return true
	}
	select {
	case l.sem <- struct{}{}:
		return true
	default:
		return false
	}
}

func (l *connLimiter) Release() {
	if l.sem == nil {
		return
	}
	select {
	case <-l.sem:
	default:
	}
}
