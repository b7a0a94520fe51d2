package klippy

// Ledger counts requests that have not been answered yet. It never goes
// below zero or above its ceiling.
type Ledger struct {
	ceiling int
	n       int
}

// NewLedger creates a ledger that allows up to ceiling outstanding requests
func NewLedger(ceiling int) *Ledger {
	if ceiling < 1 {
		ceiling = 1
	}
	return &Ledger{ceiling: ceiling}
}

// CanSend reports whether another request may be sent
func (l *Ledger) CanSend() bool {
	return l.n < l.ceiling
}

// Sent records a sent request. It returns false, recording nothing, when the
// ledger is full.
func (l *Ledger) Sent() bool {
	if !l.CanSend() {
		return false
	}
	l.n++
	return true
}

// Answered records an answer
func (l *Ledger) Answered() {
	if l.n > 0 {
		l.n--
	}
}

// InFlight returns the number of outstanding requests
func (l *Ledger) InFlight() int {
	return l.n
}

// Reset forgets every outstanding request
func (l *Ledger) Reset() {
	l.n = 0
}
