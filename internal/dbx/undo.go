package dbx

// UndoLog is the in-memory counterpart of a transaction: writers record an
// inverse operation for every change and Rollback replays them newest first.
// A nil *UndoLog records nothing, which is how non-transactional writes run.
type UndoLog struct {
	ops []func()
}

// Record registers the inverse of a change that has just been applied.
func (l *UndoLog) Record(undo func()) {
	if l == nil {
		return
	}
	l.ops = append(l.ops, undo)
}

// Rollback reverts every recorded change and empties the log.
func (l *UndoLog) Rollback() {
	if l == nil {
		return
	}
	for i := len(l.ops) - 1; i >= 0; i-- {
		l.ops[i]()
	}
	l.ops = nil
}

// Len returns the number of recorded changes.
func (l *UndoLog) Len() int {
	if l == nil {
		return 0
	}
	return len(l.ops)
}
