package treeprinter

import (
	"bytes"
	"fmt"
)

// Node is a handle on an entry of a tree being printed. Children can be added
// to any node in any order; the tree is only laid out by String():
//
//   root
//    |- child1
//    |   |- grandchild1
//    |   |- grandchild2
//    |- child2
//
type Node struct {
	e *entry
}

type entry struct {
	text     string
	children []*entry
}

// New returns the (invisible) top-level node of a new tree. Entries added
// directly to it are printed without indentation.
func New() Node {
	return Node{e: &entry{}}
}

// Child adds a child entry with the given text and returns its node.
func (n Node) Child(text string) Node {
	c := &entry{text: text}
	n.e.children = append(n.e.children, c)
	return Node{e: c}
}

// Childf is Child with fmt.Sprintf formatting.
func (n Node) Childf(format string, args ...interface{}) Node {
	return n.Child(fmt.Sprintf(format, args...))
}

// String renders the children of n (and their descendants).
func (n Node) String() string {
	p := makePrinter()
	for _, c := range n.e.children {
		p.walk(c)
	}
	return p.String()
}

func (p *printer) walk(e *entry) {
	p.Add(e.text)
	if len(e.children) == 0 {
		return
	}
	p.Enter()
	for _, c := range e.children {
		p.walk(c)
	}
	p.Exit()
}

// printer lays out rows sequentially. Enter indicates that the entries that
// follow are children of the last entry; each Enter() must be paired with a
// subsequent Exit().
type printer struct {
	level int

	// We maintain the rows accumulated so far.
	// When a new child is added (e.g. child2 above), we may have to go back up
	// and replace spaces with "|".
	rows [][]byte

	// The index of the last row for a given level.
	lastEntry []int
}

func makePrinter() printer {
	return printer{
		lastEntry: make([]int, 1, 4),
	}
}

func (p *printer) Enter() {
	p.level++
	p.lastEntry = append(p.lastEntry, -1)
}

func (p *printer) Exit() {
	if p.level == 0 {
		panic("Exit without Enter")
	}
	p.level--
	p.lastEntry = p.lastEntry[:len(p.lastEntry)-1]
}

func (p *printer) Add(text string) {
	// Each level indents by four spaces (" |- ").
	indent := 4 * p.level
	row := make([]byte, indent+len(text))
	for i := 0; i < indent-4; i++ {
		row[i] = ' '
	}
	if indent >= 4 {
		copy(row[indent-4:], " |- ")
	}
	copy(row[indent:], text)
	// Connect to the previous sibling.
	if p.level > 0 && p.lastEntry[p.level] != -1 {
		for i := p.lastEntry[p.level] + 1; i < len(p.rows); i++ {
			p.rows[i][indent-3] = '|'
		}
	}
	p.lastEntry[p.level] = len(p.rows)
	p.rows = append(p.rows, row)
}

func (p *printer) String() string {
	if p.level != 0 {
		panic("Enter without Exit")
	}
	var buf bytes.Buffer
	for _, r := range p.rows {
		buf.Write(r)
		buf.WriteByte('\n')
	}
	return buf.String()
}
