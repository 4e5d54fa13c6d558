package convert_test

import (
	"testing"

	"github.com/yeisme/assetvault/pkg/internal/convert"
)

func TestOutputFileName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"cells.ome.tif", "cells.ome.tif"},
		{"cells.tif", "cells.ome.tif"},
		{"cells.czi", "cells.ome.tif"},
		{"cells", "cells.ome.tif"},
		{"multi.part.png", "multi.part.ome.tif"},
	}

	for _, tc := range cases {
		if got := convert.OutputFileName(tc.in); got != tc.want {
			t.Errorf("OutputFileName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
