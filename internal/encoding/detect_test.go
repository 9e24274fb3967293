package encoding_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/MrJamesThe3rd/pocketbook/internal/encoding"
)

func decode(t *testing.T, input []byte) string {
	t.Helper()

	r, err := encoding.NewUTF8Reader(bytes.NewReader(input))
	require.NoError(t, err)

	got, err := io.ReadAll(r)
	require.NoError(t, err)

	return string(got)
}

func TestNewUTF8Reader_UTF8Passthrough(t *testing.T) {
	input := "Data mov.;Descrição;Montante\n30-01-2026;Café;-12,50\n"
	assert.Equal(t, input, decode(t, []byte(input)))
}

func TestNewUTF8Reader_Windows1252(t *testing.T) {
	// "Descrição" with ç and ã in their single-byte Windows-1252 form.
	input := []byte{
		'D', 'e', 's', 'c', 'r', 'i', 0xE7, 0xE3, 'o', ';',
		'M', 'o', 'n', 't', 'a', 'n', 't', 'e', '\n',
	}

	assert.Equal(t, "Descrição;Montante\n", decode(t, input))
}

func TestNewUTF8Reader_StripsUTF8BOM(t *testing.T) {
	input := append([]byte{0xEF, 0xBB, 0xBF}, []byte("Descrição;Montante\n")...)
	assert.Equal(t, "Descrição;Montante\n", decode(t, input))
}

func TestNewUTF8Reader_UTF16LE(t *testing.T) {
	content := "Descrição;Montante\n"

	encoder := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()
	encoded, err := encoder.Bytes([]byte(content))
	require.NoError(t, err)

	assert.Equal(t, content, decode(t, encoded))
}

func TestNewUTF8Reader_RoundTripsWindows1252Export(t *testing.T) {
	content := "Data mov.;Descrição;Montante\n30-01-2026;CAFÉ CENTRAL;-10,00\n"

	encoded, err := charmap.Windows1252.NewEncoder().Bytes([]byte(content))
	require.NoError(t, err)

	assert.Equal(t, content, decode(t, encoded))
}
