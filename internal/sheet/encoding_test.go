package sheet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeToUTF8(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		want     string
		encoding string
	}{
		{
			name:     "plain utf-8",
			data:     []byte("Name,Größe"),
			want:     "Name,Größe",
			encoding: "utf-8",
		},
		{
			name:     "utf-8 bom stripped",
			data:     append([]byte{0xEF, 0xBB, 0xBF}, []byte("Name")...),
			want:     "Name",
			encoding: "utf-8-bom",
		},
		{
			name:     "utf-16 little endian",
			data:     []byte{0xFF, 0xFE, 'N', 0x00, 'a', 0x00, 'm', 0x00, 'e', 0x00},
			want:     "Name",
			encoding: "utf-16le",
		},
		{
			name:     "utf-16 big endian",
			data:     []byte{0xFE, 0xFF, 0x00, 'N', 0x00, 'a', 0x00, 'm', 0x00, 'e'},
			want:     "Name",
			encoding: "utf-16be",
		},
		{
			name:     "windows-1252 fallback",
			data:     []byte{'G', 'r', 0xF6, 0xDF, 'e'},
			want:     "Größe",
			encoding: "windows-1252",
		},
		{
			name:     "empty input",
			data:     nil,
			want:     "",
			encoding: "utf-8",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, enc, err := DecodeToUTF8(tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(out))
			assert.Equal(t, tt.encoding, enc)
		})
	}
}
