package sigil

/*
License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2022 Norbert Pillmayer <norbert@pillmayer.com>

*/

import (
	"fmt"
	"strconv"
	"strings"

	tp "github.com/xlab/treeprint"
)

// DumpTree renders a signal sequence as an indented tree, for debugging
// and for diagnostics in tests. Unbalanced sequences render as far as
// they go.
func DumpTree(signals []Signal) string {
	root := tp.New()
	stack := []tp.Tree{root}
	top := func() tp.Tree { return stack[len(stack)-1] }
	for _, s := range signals {
		switch sig := s.(type) {
		case StartElement:
			label := "<" + sig.Name.String()
			for _, a := range sig.Attrs {
				label += fmt.Sprintf(" %s=%q", a.Name, a.Value)
			}
			label += ">"
			stack = append(stack, top().AddBranch(label))
		case EndElement:
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
		case Text:
			top().AddNode(strconv.Quote(sig.Data()))
		case Comment:
			top().AddNode("<!--" + sig.Text + "-->")
		case PI:
			top().AddNode("<?" + sig.Target + " " + sig.Text + "?>")
		case Doctype:
			top().AddNode("<!DOCTYPE " + sig.Name + ">")
		case XmlDecl:
			top().AddNode("<?xml version=" + strconv.Quote(sig.Version) + "?>")
		}
	}
	return strings.TrimRight(root.String(), "\n") + "\n"
}
