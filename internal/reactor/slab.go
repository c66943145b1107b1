package reactor

// Slab is a dense array of connection records addressed directly by Token.
// Insertion, lookup, and removal are all O(1); iteration is provided only
// for diagnostics and reaping fallbacks and must never be used on the hot
// path.
type Slab struct {
	slots []*Conn
}

// NewSlab constructs a Slab with cap slots, one per possible token value
// (including the reserved index 0, which is never populated).
func NewSlab(cap int) *Slab {
	return &Slab{slots: make([]*Conn, cap)}
}

// Insert writes c into tok's slot. Inserting into an already-occupied slot
// is a caller bug; the reactor never does this because token acquisition
// and slab insertion happen together on accept.
func (s *Slab) Insert(tok Token, c *Conn) {
	s.slots[tok] = c
}

// Get returns the connection at tok, or nil if the slot is empty or tok is
// out of range.
func (s *Slab) Get(tok Token) *Conn {
	if int(tok) < 0 || int(tok) >= len(s.slots) {
		return nil
	}
	return s.slots[tok]
}

// Remove empties tok's slot and returns what was there, if anything.
func (s *Slab) Remove(tok Token) *Conn {
	if int(tok) < 0 || int(tok) >= len(s.slots) {
		return nil
	}
	c := s.slots[tok]
	s.slots[tok] = nil
	return c
}

// Each calls fn for every occupied slot. Diagnostics/reaping-fallback use
// only — O(cap), never called from the event-dispatch hot path.
func (s *Slab) Each(fn func(Token, *Conn)) {
	for i, c := range s.slots {
		if c != nil {
			fn(Token(i), c)
		}
	}
}

// Len returns the slab's fixed capacity.
func (s *Slab) Len() int { return len(s.slots) }
