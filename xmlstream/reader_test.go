package xmlstream

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReaderEvents(t *testing.T) {
	doc := `<?xml version="1.0"?>
		<!-- a comment -->
		<list type="short">
			<item>one</item>
		</list>`

	r := NewReader(strings.NewReader(doc))

	ev, err := r.Next()
	require.NoError(t, err)
	require.Equal(t, StartElement{
		Name: Name{Local: "list"},
		Attr: []Attr{{Name: Name{Local: "type"}, Value: "short"}},
	}, ev)

	ev, err = r.Next()
	require.NoError(t, err)
	require.Equal(t, StartElement{Name: Name{Local: "item"}}, ev)

	ev, err = r.Next()
	require.NoError(t, err)
	require.Equal(t, CharData("one"), ev)

	ev, err = r.Next()
	require.NoError(t, err)
	require.Equal(t, EndElement{Name: Name{Local: "item"}}, ev)

	ev, err = r.Next()
	require.NoError(t, err)
	require.Equal(t, EndElement{Name: Name{Local: "list"}}, ev)

	ev, err = r.Next()
	require.NoError(t, err)
	require.Equal(t, EOF{}, ev)
}

func TestReaderPeekIsIdempotent(t *testing.T) {
	r := NewReader(strings.NewReader(`<a><b/></a>`))

	for range 3 {
		ev, err := r.Peek()
		require.NoError(t, err)
		require.Equal(t, StartElement{Name: Name{Local: "a"}}, ev)
	}

	// the following Next delivers exactly the peeked event
	ev, err := r.Next()
	require.NoError(t, err)
	require.Equal(t, StartElement{Name: Name{Local: "a"}}, ev)

	ev, err = r.Peek()
	require.NoError(t, err)
	require.Equal(t, StartElement{Name: Name{Local: "b"}}, ev)
}

func TestReaderEOFIsSticky(t *testing.T) {
	r := NewReader(strings.NewReader(`<a/>`))

	_, err := r.Next()
	require.NoError(t, err)
	_, err = r.Next()
	require.NoError(t, err)

	for range 3 {
		ev, err := r.Next()
		require.NoError(t, err)
		require.Equal(t, EOF{}, ev)

		ev, err = r.Peek()
		require.NoError(t, err)
		require.Equal(t, EOF{}, ev)
	}
}

func TestReaderDropsWhitespaceOnlyText(t *testing.T) {
	r := NewReader(strings.NewReader("<a>\n\t<b/>\n</a>"))

	var kinds []string
	for {
		ev, err := r.Next()
		require.NoError(t, err)

		if _, done := ev.(EOF); done {
			break
		}

		switch ev.(type) {
		case StartElement:
			kinds = append(kinds, "start")
		case EndElement:
			kinds = append(kinds, "end")
		case CharData:
			kinds = append(kinds, "text")
		}
	}

	require.Equal(t, []string{"start", "start", "end", "end"}, kinds)
}

func TestReaderKeepsSignificantText(t *testing.T) {
	r := NewReader(strings.NewReader(`<a>  padded  </a>`))

	_, err := r.Next()
	require.NoError(t, err)

	ev, err := r.Next()
	require.NoError(t, err)
	require.Equal(t, CharData("  padded  "), ev)
}

func TestReaderReportsMalformedInput(t *testing.T) {
	r := NewReader(strings.NewReader(`<a><b></a>`))

	_, err := r.Next()
	require.NoError(t, err)
	_, err = r.Next()
	require.NoError(t, err)

	_, err = r.Peek()
	require.Error(t, err)
	require.Contains(t, err.Error(), "read token")
}
