package digest

// Mutator is the only way to change an article's read and saved flags.
//
// Read is one-way: unread -> read, and read is terminal. Saved toggles
// freely between unsaved and saved.
type Mutator struct {
	store *Store
}

func NewMutator(store *Store) *Mutator {
	return &Mutator{store: store}
}

// MarkRead reports whether the article went from unread to read. Marking an
// already-read article succeeds without changing anything.
func (m *Mutator) MarkRead(id string) (bool, error) {
	return m.store.setRead(id)
}

// ToggleSaved flips the saved flag and returns the new value.
func (m *Mutator) ToggleSaved(id string) (bool, error) {
	return m.store.toggleSaved(id)
}
