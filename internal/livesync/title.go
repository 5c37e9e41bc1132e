package livesync

import (
	"context"
	"sync"
)

// TitleBuffer holds the title while it is being edited, apart from the
// document snapshot. It leaves edit mode only once a commit succeeds.
type TitleBuffer struct {
	mu      sync.Mutex
	editing bool
	draft   string
}

// Begin enters edit mode seeded with the current title. A buffer already in
// edit mode keeps its draft.
func (b *TitleBuffer) Begin(current string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.editing {
		return
	}
	b.editing = true
	b.draft = current
}

func (b *TitleBuffer) SetDraft(title string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.editing {
		b.draft = title
	}
}

func (b *TitleBuffer) Cancel() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.editing = false
	b.draft = ""
}

// Commit saves the draft and reports whether save ran. Outside edit mode
// nothing is saved. On error the buffer stays in edit mode with the draft
// untouched.
func (b *TitleBuffer) Commit(ctx context.Context, save func(ctx context.Context, title string) error) (bool, error) {
	b.mu.Lock()
	if !b.editing {
		b.mu.Unlock()
		return false, nil
	}
	draft := b.draft
	b.mu.Unlock()

	if err := save(ctx, draft); err != nil {
		return true, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.draft == draft {
		b.editing = false
		b.draft = ""
	}
	return true, nil
}

func (b *TitleBuffer) State() TitleState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return TitleState{Editing: b.editing, Draft: b.draft}
}
