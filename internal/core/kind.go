package core

// Kind names an event type. Kinds outside the known set are custom events and
// are dispatched through the same registry.
type Kind string

const (
	KindClick       Kind = "click"
	KindSubmit      Kind = "submit"
	KindChange      Kind = "change"
	KindFocus       Kind = "focus"
	KindBlur        Kind = "blur"
	KindMouseOver   Kind = "mouseover"
	KindMouseOut    Kind = "mouseout"
	KindKeyDown     Kind = "keydown"
	KindKeyUp       Kind = "keyup"
	KindKeyPress    Kind = "keypress"
	KindDblClick    Kind = "dblclick"
	KindResize      Kind = "resize"
	KindScroll      Kind = "scroll"
	KindContextMenu Kind = "contextmenu"
	KindDrag        Kind = "drag"
	KindDragStart   Kind = "dragstart"
	KindDragEnd     Kind = "dragend"
	KindDragOver    Kind = "dragover"
	KindDragEnter   Kind = "dragenter"
	KindDragLeave   Kind = "dragleave"
	KindDrop        Kind = "drop"
	KindInput       Kind = "input"
	KindWheel       Kind = "wheel"
	KindCopy        Kind = "copy"
	KindCut         Kind = "cut"
	KindPaste       Kind = "paste"
)

var domKinds = []Kind{
	KindClick, KindSubmit, KindChange, KindFocus, KindBlur, KindMouseOver, KindMouseOut,
	KindKeyDown, KindKeyUp, KindKeyPress, KindDblClick, KindResize, KindScroll,
	KindContextMenu, KindDrag, KindDragStart, KindDragEnd, KindDragOver, KindDragEnter,
	KindDragLeave, KindDrop, KindInput, KindWheel, KindCopy, KindCut, KindPaste,
}

var knownKinds = func() map[Kind]struct{} {
	m := make(map[Kind]struct{}, len(domKinds))
	for _, k := range domKinds {
		m[k] = struct{}{}
	}
	return m
}()

// DOMKinds returns the fixed list of page events wired by the demo, in order.
func DOMKinds() []Kind {
	out := make([]Kind, len(domKinds))
	copy(out, domKinds)
	return out
}

// Known reports whether k is one of the built-in kinds.
func (k Kind) Known() bool {
	_, ok := knownKinds[k]
	return ok
}

func (k Kind) String() string { return string(k) }
