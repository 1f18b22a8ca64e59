package msh

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Gmsh element types used by planar meshes.
const (
	TypeSegment  = 1
	TypeTriangle = 2
	TypePoint    = 15
)

// FormatError reports malformed mesh content.
type FormatError struct {
	Section string
	Line    int
	Msg     string
}

func (e *FormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("msh: %s, line %d: %s", e.Section, e.Line, e.Msg)
	}
	return fmt.Sprintf("msh: %s: %s", e.Section, e.Msg)
}

// Node is a mesh vertex.
type Node struct {
	Tag     int
	X, Y, Z float64
}

// Element is a mesh element with its resolved physical tag (0 when the
// element belongs to no physical group).
type Element struct {
	Tag      int
	Type     int
	Physical int
	Entity   int
	Nodes    []int
}

// PhysicalName is an entry of $PhysicalNames.
type PhysicalName struct {
	Dim  int    `json:"dim"`
	Tag  int    `json:"tag"`
	Name string `json:"name"`
}

// Mesh is the content of a mesh file.
type Mesh struct {
	Version       string
	PhysicalNames []PhysicalName
	Nodes         []Node
	Elements      []Element
}

// entityKey identifies a geometric entity in format 4.
type entityKey struct{ dim, tag int }

type lineReader struct {
	sc      *bufio.Scanner
	line    int
	section string
}

func (r *lineReader) next() (string, error) {
	for r.sc.Scan() {
		r.line++
		if s := strings.TrimSpace(r.sc.Text()); s != "" {
			return s, nil
		}
	}
	if err := r.sc.Err(); err != nil {
		return "", err
	}
	return "", r.errorf("unexpected end of file")
}

func (r *lineReader) errorf(format string, args ...interface{}) error {
	return &FormatError{Section: r.section, Line: r.line, Msg: fmt.Sprintf(format, args...)}
}

// ints reads a line of at least n integers.
func (r *lineReader) ints(n int) ([]int, error) {
	s, err := r.next()
	if err != nil {
		return nil, err
	}
	return r.parseInts(strings.Fields(s), n)
}

// count validates a size read from the file.
func (r *lineReader) count(what string, n int) (int, error) {
	if n < 0 {
		return 0, r.errorf("negative %s count %d", what, n)
	}
	return n, nil
}

// maxPrealloc bounds slice capacity taken from file headers.
const maxPrealloc = 1 << 16

func capacity(n int) int {
	return min(n, maxPrealloc)
}

func (r *lineReader) parseInts(fields []string, n int) ([]int, error) {
	if len(fields) < n {
		return nil, r.errorf("expected %d integers, got %d fields", n, len(fields))
	}
	out := make([]int, len(fields))
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, r.errorf("invalid integer %q", f)
		}
		out[i] = v
	}
	return out, nil
}

func (r *lineReader) parseFloats(fields []string, n int) ([]float64, error) {
	if len(fields) < n {
		return nil, r.errorf("expected %d numbers, got %d fields", n, len(fields))
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return nil, r.errorf("invalid number %q", fields[i])
		}
		out[i] = v
	}
	return out, nil
}

// expectEnd consumes the $End line of the current section.
func (r *lineReader) expectEnd() error {
	s, err := r.next()
	if err != nil {
		return err
	}
	if want := "$End" + strings.TrimPrefix(r.section, "$"); s != want {
		return r.errorf("expected %s, got %q", want, s)
	}
	return nil
}

// ReadFile reads a mesh file.
func ReadFile(path string) (*Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open mesh: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read parses an ASCII Gmsh mesh in format 2.2 or 4.1.
//
// Sections other than $MeshFormat, $PhysicalNames, $Entities, $Nodes and
// $Elements are skipped.
func Read(rd io.Reader) (*Mesh, error) {
	sc := bufio.NewScanner(rd)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	r := &lineReader{sc: sc}

	m := &Mesh{}
	var entities map[entityKey]int
	major := 0

	for sc.Scan() {
		r.line++
		s := strings.TrimSpace(sc.Text())
		if s == "" {
			continue
		}
		if !strings.HasPrefix(s, "$") {
			r.section = "file"
			return nil, r.errorf("unexpected content %q outside a section", s)
		}
		r.section = s

		var err error
		switch s {
		case "$MeshFormat":
			major, err = readFormat(r, m)
		case "$PhysicalNames":
			err = readPhysicalNames(r, m)
		case "$Entities":
			entities, err = readEntities(r)
		case "$Nodes":
			if major == 0 {
				return nil, r.errorf("$Nodes before $MeshFormat")
			}
			if major >= 4 {
				err = readNodes4(r, m)
			} else {
				err = readNodes2(r, m)
			}
		case "$Elements":
			if major == 0 {
				return nil, r.errorf("$Elements before $MeshFormat")
			}
			if major >= 4 {
				err = readElements4(r, m, entities)
			} else {
				err = readElements2(r, m)
			}
		default:
			err = skipSection(r)
		}
		if err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read mesh: %w", err)
	}
	if major == 0 {
		return nil, &FormatError{Section: "$MeshFormat", Msg: "missing"}
	}
	return m, nil
}

func readFormat(r *lineReader, m *Mesh) (int, error) {
	s, err := r.next()
	if err != nil {
		return 0, err
	}
	fields := strings.Fields(s)
	if len(fields) < 3 {
		return 0, r.errorf("expected \"version file-type data-size\", got %q", s)
	}
	version, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, r.errorf("invalid version %q", fields[0])
	}
	major := int(version)
	if major != 2 && major != 4 {
		return 0, r.errorf("unsupported format version %s", fields[0])
	}
	if fields[1] != "0" {
		return 0, r.errorf("binary meshes are not supported")
	}
	m.Version = fields[0]
	return major, r.expectEnd()
}

func readPhysicalNames(r *lineReader, m *Mesh) error {
	head, err := r.ints(1)
	if err != nil {
		return err
	}
	for i := 0; i < head[0]; i++ {
		s, err := r.next()
		if err != nil {
			return err
		}
		fields := strings.Fields(s)
		if len(fields) < 3 {
			return r.errorf("expected \"dim tag name\", got %q", s)
		}
		v, err := r.parseInts(fields[:2], 2)
		if err != nil {
			return err
		}
		m.PhysicalNames = append(m.PhysicalNames, PhysicalName{
			Dim:  v[0],
			Tag:  v[1],
			Name: strings.Trim(strings.Join(fields[2:], " "), `"`),
		})
	}
	return r.expectEnd()
}

// readEntities maps each entity of format 4 to its first physical tag.
func readEntities(r *lineReader) (map[entityKey]int, error) {
	counts, err := r.ints(4)
	if err != nil {
		return nil, err
	}

	entities := make(map[entityKey]int)
	for dim := 0; dim < 4; dim++ {
		// Points carry "tag x y z", higher dimensions a bounding box.
		physAt := 7
		if dim == 0 {
			physAt = 4
		}
		for i := 0; i < counts[dim]; i++ {
			s, err := r.next()
			if err != nil {
				return nil, err
			}
			fields := strings.Fields(s)
			if len(fields) < physAt+1 {
				return nil, r.errorf("entity line too short: %q", s)
			}
			tag, err := strconv.Atoi(fields[0])
			if err != nil {
				return nil, r.errorf("invalid entity tag %q", fields[0])
			}
			if _, err := r.parseFloats(fields[1:physAt], physAt-1); err != nil {
				return nil, err
			}
			numPhys, err := strconv.Atoi(fields[physAt])
			if err != nil || numPhys < 0 || len(fields) < physAt+1+numPhys {
				return nil, r.errorf("invalid physical tag count in %q", s)
			}
			physical := 0
			if numPhys > 0 {
				physical, err = strconv.Atoi(fields[physAt+1])
				if err != nil {
					return nil, r.errorf("invalid physical tag %q", fields[physAt+1])
				}
				if physical < 0 {
					physical = -physical
				}
			}
			entities[entityKey{dim, tag}] = physical
		}
	}
	return entities, r.expectEnd()
}

func readNodes2(r *lineReader, m *Mesh) error {
	head, err := r.ints(1)
	if err != nil {
		return err
	}
	numNodes, err := r.count("node", head[0])
	if err != nil {
		return err
	}
	m.Nodes = make([]Node, 0, capacity(numNodes))
	for i := 0; i < numNodes; i++ {
		s, err := r.next()
		if err != nil {
			return err
		}
		n, err := parseNode(r, strings.Fields(s))
		if err != nil {
			return err
		}
		m.Nodes = append(m.Nodes, n)
	}
	return r.expectEnd()
}

func parseNode(r *lineReader, fields []string) (Node, error) {
	if len(fields) < 4 {
		return Node{}, r.errorf("expected \"tag x y z\", got %d fields", len(fields))
	}
	tag, err := strconv.Atoi(fields[0])
	if err != nil {
		return Node{}, r.errorf("invalid node tag %q", fields[0])
	}
	xyz, err := r.parseFloats(fields[1:], 3)
	if err != nil {
		return Node{}, err
	}
	return Node{Tag: tag, X: xyz[0], Y: xyz[1], Z: xyz[2]}, nil
}

func readNodes4(r *lineReader, m *Mesh) error {
	head, err := r.ints(4)
	if err != nil {
		return err
	}
	numBlocks, err := r.count("block", head[0])
	if err != nil {
		return err
	}
	numNodes, err := r.count("node", head[1])
	if err != nil {
		return err
	}
	m.Nodes = make([]Node, 0, capacity(numNodes))

	for b := 0; b < numBlocks; b++ {
		block, err := r.ints(4)
		if err != nil {
			return err
		}
		count, err := r.count("block node", block[3])
		if err != nil {
			return err
		}
		tags := make([]int, 0, capacity(count))
		for i := 0; i < count; i++ {
			v, err := r.ints(1)
			if err != nil {
				return err
			}
			tags = append(tags, v[0])
		}
		for i := 0; i < count; i++ {
			s, err := r.next()
			if err != nil {
				return err
			}
			xyz, err := r.parseFloats(strings.Fields(s), 3)
			if err != nil {
				return err
			}
			m.Nodes = append(m.Nodes, Node{Tag: tags[i], X: xyz[0], Y: xyz[1], Z: xyz[2]})
		}
	}
	if len(m.Nodes) != numNodes {
		return r.errorf("header announces %d nodes, blocks hold %d", numNodes, len(m.Nodes))
	}
	return r.expectEnd()
}

func readElements2(r *lineReader, m *Mesh) error {
	head, err := r.ints(1)
	if err != nil {
		return err
	}
	numElements, err := r.count("element", head[0])
	if err != nil {
		return err
	}
	m.Elements = make([]Element, 0, capacity(numElements))
	for i := 0; i < numElements; i++ {
		v, err := r.ints(3)
		if err != nil {
			return err
		}
		numTags := v[2]
		if numTags < 0 || len(v) < 3+numTags {
			return r.errorf("element %d: invalid tag count %d", v[0], numTags)
		}
		e := Element{Tag: v[0], Type: v[1], Nodes: v[3+numTags:]}
		if numTags > 0 {
			e.Physical = v[3]
		}
		if numTags > 1 {
			e.Entity = v[4]
		}
		if len(e.Nodes) == 0 {
			return r.errorf("element %d has no nodes", e.Tag)
		}
		m.Elements = append(m.Elements, e)
	}
	return r.expectEnd()
}

func readElements4(r *lineReader, m *Mesh, entities map[entityKey]int) error {
	head, err := r.ints(4)
	if err != nil {
		return err
	}
	numBlocks, err := r.count("block", head[0])
	if err != nil {
		return err
	}
	numElements, err := r.count("element", head[1])
	if err != nil {
		return err
	}
	m.Elements = make([]Element, 0, capacity(numElements))

	for b := 0; b < numBlocks; b++ {
		block, err := r.ints(4)
		if err != nil {
			return err
		}
		dim, entity, typ := block[0], block[1], block[2]
		count, err := r.count("block element", block[3])
		if err != nil {
			return err
		}
		physical := entities[entityKey{dim, entity}]

		for i := 0; i < count; i++ {
			v, err := r.ints(2)
			if err != nil {
				return err
			}
			m.Elements = append(m.Elements, Element{
				Tag:      v[0],
				Type:     typ,
				Physical: physical,
				Entity:   entity,
				Nodes:    v[1:],
			})
		}
	}
	if len(m.Elements) != numElements {
		return r.errorf("header announces %d elements, blocks hold %d", numElements, len(m.Elements))
	}
	return r.expectEnd()
}

// skipSection discards an unsupported section up to its $End line.
func skipSection(r *lineReader) error {
	want := "$End" + strings.TrimPrefix(r.section, "$")
	for {
		s, err := r.next()
		if err != nil {
			return err
		}
		if s == want {
			return nil
		}
	}
}
