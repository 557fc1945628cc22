// Package query combines XPath selection with untangle decoding: select
// subtrees of a parsed document with an XPath expression, then decode each
// matching subtree into a typed value.
package query

import (
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/go-gum/untangle"
)

// Parse reads a whole document into a node tree for querying.
func Parse(r io.Reader) (*xmlquery.Node, error) {
	return xmlquery.Parse(r)
}

// Nodes yields the nodes selected by expr in document order.
func Nodes(doc *xmlquery.Node, expr *xpath.Expr) iter.Seq[*xmlquery.Node] {
	return func(yield func(*xmlquery.Node) bool) {
		for _, node := range xmlquery.QuerySelectorAll(doc, expr) {
			if !yield(node) {
				return
			}
		}
	}
}

// All decodes every node selected by expr into a value of type T.
func All[T any](doc *xmlquery.Node, expr *xpath.Expr) ([]T, error) {
	return AllWith[T](untangle.NewDecoder(), doc, expr)
}

// AllWith is like [All] with a custom decoder configuration.
func AllWith[T any](dec *untangle.Decoder, doc *xmlquery.Node, expr *xpath.Expr) ([]T, error) {
	var values []T

	for node := range Nodes(doc, expr) {
		value, err := decodeNode[T](dec, node)
		if err != nil {
			return nil, err
		}

		values = append(values, value)
	}

	return values, nil
}

// First decodes the first node selected by expr. Returns
// [untangle.ErrNoValue] if nothing matches.
func First[T any](doc *xmlquery.Node, expr *xpath.Expr) (T, error) {
	node := xmlquery.QuerySelector(doc, expr)
	if node == nil {
		var zero T
		return zero, untangle.ErrNoValue
	}

	return decodeNode[T](untangle.NewDecoder(), node)
}

func decodeNode[T any](dec *untangle.Decoder, node *xmlquery.Node) (T, error) {
	// the selected subtree is re-rendered and fed through the streaming
	// decoder, so both paths share one set of decode semantics
	value, err := untangle.UnmarshalNewWith[T](dec, strings.NewReader(node.OutputXML(true)))
	if err != nil {
		return value, fmt.Errorf("decode node <%s>: %w", node.Data, err)
	}

	return value, nil
}
