package event

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrMalformed is returned for frames that are not a JSON event object.
	ErrMalformed = errors.New("malformed event")
	// ErrUnknownType is returned for events with an unrecognized type tag.
	ErrUnknownType = errors.New("unknown event type")
	// ErrEmpty is returned when the field an event acts on is empty.
	ErrEmpty = errors.New("required field is empty")
)

// Inbound is a validated client event. Only the fields relevant to Type are
// set.
type Inbound struct {
	Type     string
	Content  string
	MusicURL string
	Title    string
	QueueID  int64
}

// fields holds a frame's top-level members keyed by exact name.
type fields map[string]json.RawMessage

// text returns the string member key. Absent and null members report false.
func (f fields) text(key string) (string, bool, error) {
	raw, ok := f[key]
	if !ok || string(raw) == "null" {
		return "", false, nil
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false, fmt.Errorf("%w: %s: %v", ErrMalformed, key, err)
	}
	return v, true, nil
}

// integer returns the integer member key. Absent and null members report false.
func (f fields) integer(key string) (int64, bool, error) {
	raw, ok := f[key]
	if !ok || string(raw) == "null" {
		return 0, false, nil
	}
	var v int64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false, fmt.Errorf("%w: %s: %v", ErrMalformed, key, err)
	}
	return v, true, nil
}

// Decode parses and validates one inbound frame. Member names are matched
// exactly.
func Decode(raw []byte) (Inbound, error) {
	var f fields
	if err := json.Unmarshal(raw, &f); err != nil {
		return Inbound{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	typ, _, err := f.text("type")
	if err != nil {
		return Inbound{}, err
	}

	in := Inbound{Type: typ}
	switch typ {
	case TypeChatMessage:
		content, _, err := f.text("content")
		if err != nil {
			return in, err
		}
		if content == "" {
			return in, fmt.Errorf("%w: content", ErrEmpty)
		}
		in.Content = content

	case TypeMusicMessage, TypeAddToQueue:
		url, _, err := f.text("music_url")
		if err != nil {
			return in, err
		}
		if url == "" {
			return in, fmt.Errorf("%w: music_url", ErrEmpty)
		}
		title, ok, err := f.text("title")
		if err != nil {
			return in, err
		}
		if !ok {
			title = DefaultTitle
		}
		in.MusicURL = url
		in.Title = title

	case TypeRemoveFromQueue:
		id, _, err := f.integer("queue_id")
		if err != nil {
			return in, err
		}
		// Queue ids start at 1; zero means no entry was named.
		if id <= 0 {
			return in, fmt.Errorf("%w: queue_id", ErrEmpty)
		}
		in.QueueID = id

	case "":
		return in, fmt.Errorf("%w: missing type", ErrMalformed)

	default:
		return in, fmt.Errorf("%w: %q", ErrUnknownType, typ)
	}
	return in, nil
}
