package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConvertCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "convert [file]",
		Short: "Convert an XML document to JSON or YAML",
		Long: `Convert an XML document to a generic JSON or YAML value.

Attributes become "@name" keys, text content of elements that also carry
attributes or children becomes a "#text" key, and repeated sibling elements
collect into arrays. Reads from stdin when no file (or "-") is given.`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(rootOpts, cmd, args)
		},
	}
}

func runConvert(opts *rootOptions, cmd *cobra.Command, args []string) error {
	input, err := openInput(cmd, args)
	if err != nil {
		return err
	}
	defer input.Close()

	doc, err := xmlquery.Parse(input)
	if err != nil {
		return fmt.Errorf("parse document: %w", err)
	}

	root := firstElement(doc)
	if root == nil {
		return fmt.Errorf("document has no root element")
	}

	value := map[string]any{root.Data: elementValue(root)}

	var rendered []byte
	switch opts.Format {
	case "yaml":
		rendered, err = yaml.Marshal(value)
	default:
		rendered, err = json.MarshalIndent(value, "", "  ")
		rendered = append(rendered, '\n')
	}
	if err != nil {
		return fmt.Errorf("render %s: %w", opts.Format, err)
	}

	_, err = cmd.OutOrStdout().Write(rendered)
	return err
}

func firstElement(doc *xmlquery.Node) *xmlquery.Node {
	for child := doc.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode {
			return child
		}
	}

	return nil
}

// elementValue converts one element to a generic value: a plain string for
// text-only elements, otherwise a map of attributes, children and text.
func elementValue(n *xmlquery.Node) any {
	value := map[string]any{}

	for _, attr := range n.Attr {
		value["@"+attr.Name.Local] = attr.Value
	}

	var text strings.Builder

	for child := n.FirstChild; child != nil; child = child.NextSibling {
		switch child.Type {
		case xmlquery.ElementNode:
			childValue := elementValue(child)

			switch existing := value[child.Data].(type) {
			case nil:
				value[child.Data] = childValue
			case []any:
				value[child.Data] = append(existing, childValue)
			default:
				// second sibling of this name, start a list
				value[child.Data] = []any{existing, childValue}
			}

		case xmlquery.TextNode, xmlquery.CharDataNode:
			text.WriteString(child.Data)
		}
	}

	content := strings.TrimSpace(text.String())

	if len(value) == 0 {
		return content
	}

	if content != "" {
		value["#text"] = content
	}

	return value
}
