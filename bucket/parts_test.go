package bucket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanParts(t *testing.T) {
	const mib = 1024 * 1024

	tests := []struct {
		name      string
		size      int64
		partSize  int64
		wantCount int
		wantLast  int64
	}{
		{
			name:      "exact multiple",
			size:      25 * mib,
			partSize:  5 * mib,
			wantCount: 5,
			wantLast:  5 * mib,
		},
		{
			name:      "remainder in final part",
			size:      12 * mib,
			partSize:  5 * mib,
			wantCount: 3,
			wantLast:  2 * mib,
		},
		{
			name:      "single part smaller than part size",
			size:      3 * mib,
			partSize:  5 * mib,
			wantCount: 1,
			wantLast:  3 * mib,
		},
		{
			name:      "one byte",
			size:      1,
			partSize:  5 * mib,
			wantCount: 1,
			wantLast:  1,
		},
		{
			name:      "one byte over a boundary",
			size:      5*mib + 1,
			partSize:  5 * mib,
			wantCount: 2,
			wantLast:  1,
		},
		{
			name:      "zero bytes still yields one part",
			size:      0,
			partSize:  5 * mib,
			wantCount: 1,
			wantLast:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parts := planParts(tt.size, tt.partSize)
			require.Len(t, parts, tt.wantCount)

			// Part numbers are contiguous from 1 and ranges tile the file.
			var sum int64
			var offset int64
			for i, p := range parts {
				assert.Equal(t, i+1, p.Number)
				assert.Equal(t, offset, p.Offset)
				sum += p.Length
				offset += p.Length
			}

			assert.Equal(t, tt.size, sum, "part ranges must sum to file size")
			assert.Equal(t, tt.wantLast, parts[len(parts)-1].Length)

			// All parts except the last are exactly partSize.
			for _, p := range parts[:len(parts)-1] {
				assert.Equal(t, tt.partSize, p.Length)
			}
		})
	}
}
