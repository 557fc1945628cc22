// Package untangle maps XML documents onto go types (e.g. structs, slices,
// strings, etc) similar to [xml.Unmarshal], but driven by a forward-only
// event stream with single-token lookahead.
//
// The [Decoder.Unmarshal] function walks the target type and consumes one
// complete element per value. Repeated sibling elements of the same name
// collect into slice fields; XML has no repetition marker, so a run of
// siblings is inferred from the tag name of the first one and ends at the
// first sibling with a different name, which stays in the stream for the
// enclosing decoder.
//
// Struct fields map to child elements by name, controlled by the "xml"
// struct tag. The tag options "attr" and "value" bind a field to an
// attribute of the enclosing element or to its flattened content.
package untangle
