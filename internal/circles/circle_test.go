package circles

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	input := "0 0 1\n\n5 5 2\n   \n# comment\n1.5\t2.5  0.25\n"

	list, err := Parse(strings.NewReader(input), LoadOptions{})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	want := []Circle{{0, 0, 1}, {5, 5, 2}, {1.5, 2.5, 0.25}}
	if len(list) != len(want) {
		t.Fatalf("got %d circles, want %d", len(list), len(want))
	}
	for i := range want {
		if list[i] != want[i] {
			t.Errorf("circle %d: got %+v, want %+v", i, list[i], want[i])
		}
	}
}

func TestParse_Empty(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"blank lines", "\n\n   \n"},
		{"comments only", "# x y r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input), LoadOptions{})
			var empty *EmptyInputError
			if !errors.As(err, &empty) {
				t.Fatalf("expected EmptyInputError, got %v", err)
			}
		})
	}
}

func TestParse_InvalidLines(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantLine int
	}{
		{"two values", "1 2 3\n4 5\n", 2},
		{"four values", "1 2 3 4\n", 1},
		{"not a number", "1 2 3\n\nx 2 3\n", 3},
		{"zero radius", "1 2 0\n", 1},
		{"negative radius", "1 2 3\n1 2 -1\n", 2},
		{"nan", "NaN 2 3\n", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input), LoadOptions{})
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("expected ParseError, got %v", err)
			}
			if perr.Line != tt.wantLine {
				t.Errorf("Line: got %d, want %d", perr.Line, tt.wantLine)
			}
		})
	}
}

func TestParse_FlipY(t *testing.T) {
	list, err := Parse(strings.NewReader("10 20 5\n"), LoadOptions{FlipHeight: 100})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if list[0].Y != 80 {
		t.Errorf("flipped y: got %v, want 80", list[0].Y)
	}
	if list[0].X != 10 || list[0].R != 5 {
		t.Errorf("x and r must be unchanged, got %+v", list[0])
	}
}

func TestParse_ScaleAfterFlip(t *testing.T) {
	list, err := Parse(strings.NewReader("10 20 5\n"), LoadOptions{FlipHeight: 100, Scale: 0.01})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	got := list[0]
	if !near(got.X, 0.1) || !near(got.Y, 0.8) || !near(got.R, 0.05) {
		t.Errorf("got %+v, want {0.1 0.8 0.05}", got)
	}
}

func TestTransform_DoesNotMutate(t *testing.T) {
	in := []Circle{{1, 2, 3}}
	out := Transform(in, LoadOptions{FlipHeight: 10, Scale: 2})
	if in[0] != (Circle{1, 2, 3}) {
		t.Errorf("input mutated: %+v", in[0])
	}
	if out[0] != (Circle{2, 16, 6}) {
		t.Errorf("got %+v, want {2 16 6}", out[0])
	}
}

func TestNormalizeScale(t *testing.T) {
	tests := []struct {
		w, h int
		want float64
	}{
		{200, 100, 0.005},
		{100, 400, 0.0025},
		{0, 0, 1},
	}
	for _, tt := range tests {
		if got := NormalizeScale(tt.w, tt.h); !near(got, tt.want) {
			t.Errorf("NormalizeScale(%d, %d) = %v, want %v", tt.w, tt.h, got, tt.want)
		}
	}
}

func TestWrite_RoundTrip(t *testing.T) {
	list := []Circle{{12.4, 30.6, 44.5}, {100, 0.5, 46}}

	var buf bytes.Buffer
	if err := Write(&buf, list, false); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if buf.String() != "12.4 30.6 44.5\n100 0.5 46\n" {
		t.Errorf("unexpected output:\n%s", buf.String())
	}

	buf.Reset()
	if err := Write(&buf, list, true); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if buf.String() != "12 31 45\n100 1 46\n" {
		t.Errorf("unexpected rounded output:\n%s", buf.String())
	}
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cercles.txt")
	if err := WriteFile(path, []Circle{{1, 2, 3}}, false); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	list, err := ReadFile(path, LoadOptions{})
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if len(list) != 1 || list[0] != (Circle{1, 2, 3}) {
		t.Errorf("got %+v", list)
	}

	empty := filepath.Join(t.TempDir(), "empty.txt")
	if err := os.WriteFile(empty, nil, 0644); err != nil {
		t.Fatal(err)
	}
	_, err = ReadFile(empty, LoadOptions{})
	var e *EmptyInputError
	if !errors.As(err, &e) || e.Source != empty {
		t.Errorf("expected EmptyInputError for %s, got %v", empty, err)
	}
}

func TestReadFile_NonExistent(t *testing.T) {
	if _, err := ReadFile("/nonexistent/cercles.txt", LoadOptions{}); err == nil {
		t.Error("ReadFile should fail for non-existent file")
	}
}

func near(a, b float64) bool {
	d := a - b
	return d < 1e-12 && d > -1e-12
}
