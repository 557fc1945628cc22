package xmlstream

// A Name identifies an XML element or attribute. Space is the namespace
// URL as resolved by the tokenizer, Local the tag name. Names compare
// with ==, byte for byte; there is no case folding or prefix handling.
type Name struct {
	Space, Local string
}

// An Attr is one attribute of a start element.
type Attr struct {
	Name  Name
	Value string
}

// An Event is one structural token of an XML document. The concrete types
// are [StartElement], [EndElement], [CharData] and [EOF].
type Event interface {
	event()
}

// A StartElement is an opening tag, not yet matched to its closing tag.
type StartElement struct {
	Name Name
	Attr []Attr
}

// Attribute returns the value of the attribute with the given local name.
func (e StartElement) Attribute(local string) (string, bool) {
	for _, attr := range e.Attr {
		if attr.Name.Local == local {
			return attr.Value, true
		}
	}

	return "", false
}

// An EndElement is a closing tag.
type EndElement struct {
	Name Name
}

// CharData is text content between tags, entity references already resolved.
type CharData string

// EOF marks the end of the document. A [Reader] keeps returning EOF once
// the underlying input is exhausted.
type EOF struct{}

func (StartElement) event() {}
func (EndElement) event()   {}
func (CharData) event()     {}
func (EOF) event()          {}
