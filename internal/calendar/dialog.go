package calendar

import (
	"context"
	"sync"
	"time"

	"roomcal/internal/model"
)

// Creator books a slot and reports whether it succeeded.
type Creator interface {
	Create(ctx context.Context, date time.Time, hour int, title, content string) bool
}

// Dialog is the slot confirmation dialog. It is closed while no slot is
// selected and open while one is; the fields only exist while open.
type Dialog struct {
	mu      sync.Mutex
	slot    *model.Slot
	title   string
	content string
}

// Open selects slot and shows the dialog with empty fields. Opening while
// already open switches to the new slot.
func (d *Dialog) Open(slot model.Slot) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.slot != nil && d.slot.Key() == slot.Key() && d.slot.Hour == slot.Hour {
		return
	}
	s := slot
	d.slot = &s
	d.title = ""
	d.content = ""
}

func (d *Dialog) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.slot != nil
}

// Slot returns the selected slot.
func (d *Dialog) Slot() (model.Slot, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.slot == nil {
		return model.Slot{}, false
	}
	return *d.slot, true
}

// SetTitle is ignored while closed.
func (d *Dialog) SetTitle(s string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.slot == nil {
		return
	}
	d.title = s
}

// SetContent stores at most model.MaxContentLen characters of s; excess input
// is dropped. Ignored while closed.
func (d *Dialog) SetContent(s string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.slot == nil {
		return
	}
	d.content = model.TruncateContent(s)
}

func (d *Dialog) Title() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.title
}

func (d *Dialog) Content() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.content
}

// CanConfirm is true only while open with both fields non-empty.
func (d *Dialog) CanConfirm() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.canConfirmLocked()
}

func (d *Dialog) canConfirmLocked() bool {
	return d.slot != nil && d.title != "" && d.content != ""
}

// Confirm books the selected slot through c. On success the dialog closes and
// its fields are cleared; on failure it stays open with the fields intact.
func (d *Dialog) Confirm(ctx context.Context, c Creator) bool {
	d.mu.Lock()
	if !d.canConfirmLocked() {
		d.mu.Unlock()
		return false
	}
	slot, title, content := *d.slot, d.title, d.content
	d.mu.Unlock()

	if !c.Create(ctx, slot.Date, slot.Hour, title, content) {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	// Close only if the user has not moved on to another slot meanwhile.
	if d.slot != nil && d.slot.Key() == slot.Key() && d.slot.Hour == slot.Hour {
		d.closeLocked()
	}
	return true
}

// Cancel closes the dialog and discards the fields without booking.
func (d *Dialog) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closeLocked()
}

func (d *Dialog) closeLocked() {
	d.slot = nil
	d.title = ""
	d.content = ""
}
