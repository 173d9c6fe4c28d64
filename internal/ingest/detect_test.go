package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name      string
		data      []byte
		encoding  string
		delimiter rune
		rows      int
	}{
		{
			name:      "utf-8 comma",
			data:      []byte("email,first_name,last_name,company\na@b.com,A,B,C\n"),
			encoding:  "utf-8",
			delimiter: ',',
			rows:      1,
		},
		{
			name:      "utf-8 with byte order mark",
			data:      append([]byte{0xEF, 0xBB, 0xBF}, []byte("email,first_name,last_name,company\na@b.com,A,B,C\n")...),
			encoding:  "utf-8",
			delimiter: ',',
			rows:      1,
		},
		{
			name:      "latin-1 semicolon",
			data:      []byte("email;nome;sobrenome;empresa\njo\xe3o@b.com;Jo\xe3o;Concei\xe7\xe3o;Padaria\n"),
			encoding:  "latin-1",
			delimiter: ';',
			rows:      1,
		},
		{
			name:      "tab",
			data:      []byte("email\tfirst_name\tlast_name\tcompany\na@b.com\tA\tB\tC\nc@d.com\tC\tD\tE\n"),
			encoding:  "utf-8",
			delimiter: '\t',
			rows:      2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := Detect(tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.encoding, table.Encoding)
			assert.Equal(t, tt.delimiter, table.Delimiter)
			assert.Len(t, table.Rows, tt.rows)
			assert.Len(t, table.Header, 4)
		})
	}
}

func TestDetect_DecodesLatin1Values(t *testing.T) {
	table, err := Detect([]byte("email;nome;sobrenome;empresa\njoao@b.com;Jo\xe3o;Concei\xe7\xe3o;Padaria\n"))
	require.NoError(t, err)
	assert.Equal(t, "João", table.Rows[0][1])
	assert.Equal(t, "Conceição", table.Rows[0][2])
	assert.Equal(t, "semicolon", table.DelimiterName())
}

func TestDetect_SkipsBlankRecordsAndKeepsLineNumbers(t *testing.T) {
	table, err := Detect([]byte("email,first_name,last_name,company\n,,,\na@b.com,A,B,C\n\nc@d.com,C,D,E\n"))
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, []int{3, 5}, table.Lines)
}

func TestDetect_Errors(t *testing.T) {
	var empty *EmptyContentError
	_, err := Detect(nil)
	assert.ErrorAs(t, err, &empty)

	_, err = Detect([]byte("  \n\n"))
	assert.ErrorAs(t, err, &empty)

	_, err = Detect([]byte("email,first_name,last_name,company\n"))
	assert.ErrorAs(t, err, &empty)

	var format *FormatError
	_, err = Detect([]byte("single\nvalue\n"))
	require.ErrorAs(t, err, &format)
	assert.NotEmpty(t, format.Tried)
	assert.Contains(t, err.Error(), "unable to detect CSV format")
}
