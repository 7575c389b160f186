package protocol

// Event is a notification the background pushes to the extension.
type Event interface {
	Event() Action
}

type TextStored struct {
	Text string `json:"text"`
}

type OpenPopup struct{}

func (TextStored) Event() Action { return EventTextStored }
func (OpenPopup) Event() Action  { return EventOpenPopup }

// EncodeEvent writes ev with its action tag.
func EncodeEvent(ev Event) ([]byte, error) {
	return encodeTagged(ev.Event(), ev)
}
