package mesher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// EnvBinary names the environment variable overriding the Gmsh binary.
const EnvBinary = "FIBRE_MESH_GMSH"

// DefaultBinary is the Gmsh executable looked up in PATH.
const DefaultBinary = "gmsh"

// MissingToolError reports that the Gmsh binary could not be found.
type MissingToolError struct {
	Binary string
	Err    error
}

func (e *MissingToolError) Error() string {
	return fmt.Sprintf("mesh generator %q not found (%v); install Gmsh "+
		"(Debian/Ubuntu: sudo apt install gmsh, macOS: brew install gmsh, "+
		"others: https://gmsh.info) or set %s to its path", e.Binary, e.Err, EnvBinary)
}

func (e *MissingToolError) Unwrap() error { return e.Err }

// ToolFailure reports a Gmsh run that did not produce a mesh. Stdout and
// Stderr are the tool's output, verbatim.
type ToolFailure struct {
	Binary   string
	ExitCode int
	Stdout   string
	Stderr   string
	Reason   string
}

func (e *ToolFailure) Error() string {
	msg := fmt.Sprintf("%s failed", e.Binary)
	if e.Reason != "" {
		msg += ": " + e.Reason
	} else {
		msg += " with exit code " + strconv.Itoa(e.ExitCode)
	}
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

// Gmsh describes how to invoke the mesh generator.
type Gmsh struct {
	// Binary is the executable name or path.
	Binary string

	// Dimension is the mesh dimension flag, 2 for planar sections.
	Dimension int

	// Format selects the output format, e.g. "msh22". Empty keeps the
	// Gmsh default (4.1).
	Format string

	// ExtraArgs are appended after the standard arguments.
	ExtraArgs []string
}

// New returns a 2D mesher using $FIBRE_MESH_GMSH or "gmsh".
func New() *Gmsh {
	binary := os.Getenv(EnvBinary)
	if binary == "" {
		binary = DefaultBinary
	}
	return &Gmsh{Binary: binary, Dimension: 2}
}

// Result describes a successful run.
type Result struct {
	MeshPath string        `json:"mesh_path"`
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	Duration time.Duration `json:"duration_ns"`
}

// MeshPathFor returns the mesh path next to a geometry file: the same name
// with a .msh extension.
func MeshPathFor(geoPath string) string {
	return strings.TrimSuffix(geoPath, filepath.Ext(geoPath)) + ".msh"
}

// Args returns the command-line arguments for meshing geoPath into mshPath.
func (g *Gmsh) Args(geoPath, mshPath string) []string {
	dim := g.Dimension
	if dim == 0 {
		dim = 2
	}
	args := []string{geoPath, "-" + strconv.Itoa(dim), "-o", mshPath}
	if g.Format != "" {
		args = append(args, "-format", g.Format)
	}
	return append(args, g.ExtraArgs...)
}

// Run meshes geoPath into mshPath and blocks until Gmsh exits.
//
// # Errors
//
//   - *MissingToolError if the binary is not found
//   - *ToolFailure if Gmsh exits non-zero or leaves no mesh file; an
//     existing file at mshPath is removed before Gmsh starts
//   - Returns error if geoPath does not exist
func (g *Gmsh) Run(ctx context.Context, geoPath, mshPath string) (*Result, error) {
	if _, err := os.Stat(geoPath); err != nil {
		return nil, fmt.Errorf("geometry file: %w", err)
	}
	if g.Dimension < 0 || g.Dimension > 3 {
		return nil, fmt.Errorf("mesh dimension must be 1, 2 or 3, got %d", g.Dimension)
	}

	binary := g.Binary
	if binary == "" {
		binary = DefaultBinary
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, &MissingToolError{Binary: binary, Err: err}
	}

	// A mesh left by an earlier run must not pass for this run's output.
	if err := os.Remove(mshPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to remove stale mesh: %w", err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, g.Args(geoPath, mshPath)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err = cmd.Run()
	elapsed := time.Since(start)

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, &ToolFailure{
				Binary:   binary,
				ExitCode: exitErr.ExitCode(),
				Stdout:   stdout.String(),
				Stderr:   stderr.String(),
			}
		}
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return nil, &MissingToolError{Binary: binary, Err: err}
		}
		return nil, fmt.Errorf("failed to run %s: %w", binary, err)
	}

	if _, err := os.Stat(mshPath); err != nil {
		return nil, &ToolFailure{
			Binary: binary,
			Stdout: stdout.String(),
			Stderr: stderr.String(),
			Reason: "no mesh written to " + mshPath,
		}
	}

	return &Result{
		MeshPath: mshPath,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: elapsed,
	}, nil
}
