package untangle

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTextSourceParsesBounds(t *testing.T) {
	value8, err := TextSource("-128").Int8()
	require.NoError(t, err)
	require.Equal(t, int8(-128), value8)

	_, err = TextSource("128").Int8()
	require.ErrorIs(t, err, strconv.ErrRange)

	value16, err := TextSource("65535").Uint16()
	require.NoError(t, err)
	require.Equal(t, uint16(65535), value16)

	_, err = TextSource("-1").Uint16()
	require.ErrorIs(t, err, ErrNotSupported)

	value64, err := TextSource("-9223372036854775808").Int64()
	require.NoError(t, err)
	require.Equal(t, int64(-9223372036854775808), value64)

	_, err = TextSource("9223372036854775808").Int64()
	require.ErrorIs(t, err, strconv.ErrRange)
}

func TestTextSourceSyntaxErrorsAreNotSupported(t *testing.T) {
	for _, input := range []string{"foobar", "", "1e4"} {
		_, err := TextSource(input).Int()
		require.ErrorIs(t, err, ErrNotSupported, "input %q", input)
	}

	// a float accepts the exponent form
	floatValue, err := TextSource("1e4").Float()
	require.NoError(t, err)
	require.Equal(t, 10000.0, floatValue)
}

func TestTextSourceBool(t *testing.T) {
	parsed, err := TextSource("true").Bool()
	require.NoError(t, err)
	require.True(t, parsed)

	_, err = TextSource("yes").Bool()
	require.ErrorIs(t, err, ErrNotSupported)
}

// decoding through a document exercises the same parsers
func TestUnmarshalPrimitiveBounds(t *testing.T) {
	parsed, err := UnmarshalNew[uint8](strings.NewReader(`<v>255</v>`))
	require.NoError(t, err)
	require.Equal(t, uint8(255), parsed)

	_, err = UnmarshalNew[uint8](strings.NewReader(`<v>256</v>`))
	require.ErrorIs(t, err, strconv.ErrRange)

	_, err = UnmarshalNew[int32](strings.NewReader(`<v>not a number</v>`))
	require.ErrorIs(t, err, ErrNotSupported)
}
