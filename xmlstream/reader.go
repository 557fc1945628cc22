// Package xmlstream turns an XML document into a flat stream of structural
// events with single-token lookahead. It is the event source the untangle
// decoder runs on: Peek never advances the stream, Next consumes exactly one
// event, and the end of input is an ordinary [EOF] event rather than an error.
package xmlstream

import (
	"encoding/xml"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// A Reader produces the event stream for one document. It buffers at most
// the single event exposed by Peek; there is no further lookahead and no
// way to rewind past a consumed event.
type Reader struct {
	dec *xml.Decoder

	// cached result of the last Peek, delivered by the following Next
	peeked Event
	err    error
}

// NewReader returns a Reader producing events from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{dec: xml.NewDecoder(r)}
}

// Peek returns the next event without consuming it. Repeated calls without
// an intervening Next return the same event. Once the input is exhausted
// Peek returns EOF{} forever.
func (r *Reader) Peek() (Event, error) {
	if r.peeked == nil && r.err == nil {
		r.peeked, r.err = r.read()
	}

	return r.peeked, r.err
}

// Next consumes and returns the next event.
func (r *Reader) Next() (Event, error) {
	if r.peeked != nil || r.err != nil {
		ev, err := r.peeked, r.err
		r.peeked = nil
		r.err = nil

		// end of input is sticky, the next Peek must see it again
		if _, eof := ev.(EOF); eof {
			r.peeked = ev
		}

		return ev, err
	}

	ev, err := r.read()
	if _, eof := ev.(EOF); eof {
		r.peeked = ev
	}

	return ev, err
}

// read pulls tokens from the decoder until one maps to an Event. Processing
// instructions, comments, directives and whitespace-only character data
// carry no structure and are dropped.
func (r *Reader) read() (Event, error) {
	for {
		token, err := r.dec.Token()
		switch {
		case err == io.EOF:
			return EOF{}, nil
		case err != nil:
			return nil, errors.Wrapf(err, "read token at offset %d", r.dec.InputOffset())
		}

		switch token := token.(type) {
		case xml.StartElement:
			return startEvent(token), nil

		case xml.EndElement:
			return EndElement{Name: Name(token.Name)}, nil

		case xml.CharData:
			if strings.TrimSpace(string(token)) == "" {
				continue
			}

			return CharData(token), nil

		default:
			// ProcInst, Comment, Directive
			continue
		}
	}
}

func startEvent(token xml.StartElement) StartElement {
	ev := StartElement{Name: Name(token.Name)}

	if len(token.Attr) > 0 {
		ev.Attr = make([]Attr, len(token.Attr))
		for idx, attr := range token.Attr {
			ev.Attr[idx] = Attr{Name: Name(attr.Name), Value: attr.Value}
		}
	}

	return ev
}
