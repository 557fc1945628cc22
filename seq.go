package untangle

import "github.com/go-gum/untangle/xmlstream"

// names restricts which sibling elements belong to the current sequence.
// The zero value matches every element. A non-zero names was captured from
// the first element of the run and never changes afterwards: XML has no
// repetition marker, so "the next sibling repeats the sequence" is inferred
// from tag name equality with the first sibling.
type names struct {
	known bool
	name  xmlstream.Name
}

func (n names) matches(start xmlstream.StartElement) bool {
	return !n.known || start.Name == n.name
}

// inferNames builds the filter for a sequence about to be decoded. A struct
// with a flattened value field accepts children of any shape, so no filter
// applies there. Otherwise the expected name is the name of the next start
// element; if the stream holds anything else the filter stays open and the
// decision loop terminates on its own.
func inferNames(d *driver, hasValueField bool) (names, error) {
	if hasValueField {
		return names{}, nil
	}

	ev, err := d.reader.Peek()
	if err != nil {
		return names{}, err
	}

	if start, ok := ev.(xmlstream.StartElement); ok {
		return names{known: true, name: start.Name}, nil
	}

	return names{}, nil
}

// seqAccess decides, one prospective element at a time, whether a run of
// sibling elements continues. It owns the driver exclusively while alive;
// all real state is the stream cursor plus the immutable filter.
type seqAccess struct {
	d      *driver
	filter names
}

func newSeqAccess(d *driver) (*seqAccess, error) {
	// the value-field flag applies to this sequence only; clear it before
	// any nested sequence infers its own filter
	hasValueField := d.hasValueField
	d.hasValueField = false

	filter, err := inferNames(d, hasValueField)
	if err != nil {
		return nil, err
	}

	return &seqAccess{d: d, filter: filter}, nil
}

// next reports whether another element belongs to the sequence and, if so,
// lets decode consume exactly that element (its start tag through the
// matching end tag). On every "no" path nothing is consumed: the enclosing
// decoder must see the very event this peek observed, be it the container's
// end tag or a sibling of a different name.
func (s *seqAccess) next(decode func(*driver) error) (bool, error) {
	ev, err := s.d.reader.Peek()
	if err != nil {
		return false, err
	}

	switch ev := ev.(type) {
	case xmlstream.EOF:
		return false, nil

	case xmlstream.EndElement:
		return false, nil

	case xmlstream.StartElement:
		if !s.filter.matches(ev) {
			return false, nil
		}
	}

	// anything else, including character data, is the element decoder's
	// problem and must not silently end the run
	if err := decode(s.d); err != nil {
		return false, err
	}

	return true, nil
}
