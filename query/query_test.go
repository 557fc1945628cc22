package query

import (
	"strings"
	"testing"

	"github.com/antchfx/xpath"
	"github.com/stretchr/testify/require"

	"github.com/go-gum/untangle"
)

const library = `
	<library>
		<shelf floor="1">
			<book year="1979"><title>Gödel, Escher, Bach</title></book>
			<book year="1984"><title>Neuromancer</title></book>
		</shelf>
		<shelf floor="2">
			<book year="1992"><title>Snow Crash</title></book>
		</shelf>
	</library>`

type Book struct {
	Year  int    `xml:"year,attr"`
	Title string `xml:"title"`
}

var xpBooks = xpath.MustCompile(`//book`)
var xpSecondFloorBooks = xpath.MustCompile(`//shelf[@floor='2']/book`)
var xpNothing = xpath.MustCompile(`//magazine`)

func TestAll(t *testing.T) {
	doc, err := Parse(strings.NewReader(library))
	require.NoError(t, err)

	books, err := All[Book](doc, xpBooks)
	require.NoError(t, err)
	require.Equal(t, []Book{
		{Year: 1979, Title: "Gödel, Escher, Bach"},
		{Year: 1984, Title: "Neuromancer"},
		{Year: 1992, Title: "Snow Crash"},
	}, books)
}

func TestFirst(t *testing.T) {
	doc, err := Parse(strings.NewReader(library))
	require.NoError(t, err)

	book, err := First[Book](doc, xpSecondFloorBooks)
	require.NoError(t, err)
	require.Equal(t, Book{Year: 1992, Title: "Snow Crash"}, book)

	_, err = First[Book](doc, xpNothing)
	require.ErrorIs(t, err, untangle.ErrNoValue)
}

func TestNodes(t *testing.T) {
	doc, err := Parse(strings.NewReader(library))
	require.NoError(t, err)

	var titles []string
	for node := range Nodes(doc, xpBooks) {
		titles = append(titles, node.SelectElement("title").InnerText())
	}

	require.Equal(t, []string{"Gödel, Escher, Bach", "Neuromancer", "Snow Crash"}, titles)
}

func TestAllDecodeError(t *testing.T) {
	doc, err := Parse(strings.NewReader(`<root><book year="not a year"><title>x</title></book></root>`))
	require.NoError(t, err)

	_, err = All[Book](doc, xpBooks)
	require.ErrorIs(t, err, untangle.ErrNotSupported)
}
