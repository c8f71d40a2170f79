package aid

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocStatus(t *testing.T) {
	cases := []struct {
		name      string
		total     int
		remaining int
		want      string
	}{
		{"untouched", 100, 100, StatusAllocated},
		{"partially distributed", 100, 40, StatusPartiallyDistributed},
		{"depleted", 100, 0, StatusDepleted},
		{"fully distributed single unit", 1, 0, StatusDepleted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, allocStatus(tc.total, tc.remaining))
		})
	}
}
