package board

// IsRepetition reports whether the current key already occurred since the
// last irreversible move (capture, pawn move or null move). A single earlier
// occurrence is enough: the search treats a twofold repetition as a draw.
func (b *Board) IsRepetition() bool {
	curr := len(b.keys) - 1
	key := b.keys[curr]
	// Only positions with the same side to move can match.
	for i := curr - 2; i >= b.irreversible; i -= 2 {
		if b.keys[i] == key {
			return true
		}
	}
	return false
}

// Ply returns the number of moves applied since the board was created.
func (b *Board) Ply() int { return len(b.keys) - 1 }
