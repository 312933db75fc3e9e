package playback

// Navigator is the manual navigation surface over a controller. Every
// operation validates its target and silently ignores out-of-range requests;
// navigation never wraps around. Page changes go through SeekToPage so the
// displayed page and the audio position can never drift apart.
type Navigator struct {
	ctrl *Controller
}

// NewNavigator creates a navigator bound to a controller
func NewNavigator(ctrl *Controller) *Navigator {
	return &Navigator{ctrl: ctrl}
}

// Next advances to the following page; a no-op on the last page
func (n *Navigator) Next() {
	n.JumpTo(n.ctrl.ActivePageIndex() + 1)
}

// Previous moves to the preceding page; a no-op on the first page
func (n *Navigator) Previous() {
	n.JumpTo(n.ctrl.ActivePageIndex() - 1)
}

// JumpTo moves directly to the given page index. Out-of-range indexes are
// ignored; this is expected UI-boundary behavior, not a fault.
func (n *Navigator) JumpTo(index int) {
	if index < 0 || index >= n.ctrl.PageCount() {
		return
	}
	// Seek errors only occur on a broken audio driver; the page still
	// cannot be left inconsistent, so there is nothing to surface here.
	_ = n.ctrl.SeekToPage(index)
}
