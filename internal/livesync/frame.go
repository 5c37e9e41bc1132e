package livesync

import "encoding/json"

// Frame types sent to the browser.
const (
	FrameSnapshot   = "SNAPSHOT"
	FrameRedirect   = "REDIRECT"
	FrameNotify     = "NOTIFY"
	FrameTitleState = "TITLE_STATE"
	FrameRelay      = "RELAY"
)

// Frame types the browser sends.
const (
	FrameTitleBegin  = "TITLE_BEGIN"
	FrameTitleDraft  = "TITLE_DRAFT"
	FrameTitleCommit = "TITLE_COMMIT"
	FrameTitleCancel = "TITLE_CANCEL"
	FrameContent     = "CONTENT"
)

// DashboardPath is where a view goes when its document is gone.
const DashboardPath = "/dashboard"

type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

const (
	VariantDefault     = "default"
	VariantDestructive = "destructive"
)

type Notification struct {
	Variant     string `json:"variant"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type Redirect struct {
	To string `json:"to"`
}

type TitleState struct {
	Editing bool   `json:"editing"`
	Draft   string `json:"draft"`
}

type TitleDraft struct {
	Title string `json:"title"`
}

// ContentEdit is one local editor change: the opaque relay update and the
// HTML serialization of the whole body after it.
type ContentEdit struct {
	HTML   string `json:"html"`
	Update []byte `json:"update,omitempty"`
}

type RelayUpdate struct {
	Update []byte `json:"update"`
}

func newFrame(typ string, payload any) Frame {
	f := Frame{Type: typ}
	if payload != nil {
		f.Payload, _ = json.Marshal(payload)
	}
	return f
}
