package htmltree

/*
License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2022 Norbert Pillmayer <norbert@pillmayer.com>

*/

import (
	"strings"

	"github.com/npillmayer/sigil/htmlscan"
	"github.com/npillmayer/sigil/markup"
	"golang.org/x/net/html/atom"
)

// --- Integration points -----------------------------------------------------

func (c *ctor) isMathMLTextIntegrationPoint(e *elem) bool {
	if e.name.Space != markup.NsMathML {
		return false
	}
	switch e.name.Local {
	case "mi", "mo", "mn", "ms", "mtext":
		return true
	}
	return false
}

func (c *ctor) isHTMLIntegrationPoint(e *elem) bool {
	switch e.name.Space {
	case markup.NsSVG:
		switch e.name.Local {
		case "foreignObject", "desc", "title":
			return true
		}
	case markup.NsMathML:
		if e.name.Local != "annotation-xml" {
			return false
		}
		for _, a := range e.attrs {
			if a.Name.Local == "encoding" {
				switch strings.ToLower(a.Value) {
				case "text/html", "application/xhtml+xml":
					return true
				}
			}
		}
	}
	return false
}

// useForeignRules decides between the foreign-content rules and the
// current insertion mode, per the tree construction dispatcher.
func (c *ctor) useForeignRules(tok htmlscan.Token) bool {
	acn := c.adjustedCurrent()
	if acn == nil || acn.isHTML() {
		return false
	}
	if tok.Kind == htmlscan.EOFToken {
		return false
	}
	if c.isMathMLTextIntegrationPoint(acn) {
		if tok.Kind == htmlscan.CharsToken {
			return false
		}
		if tok.Kind == htmlscan.StartTagToken &&
			tok.Name != "mglyph" && tok.Name != "malignmark" {
			return false
		}
	}
	if acn.name.Space == markup.NsMathML && acn.name.Local == "annotation-xml" &&
		tok.Kind == htmlscan.StartTagToken && tok.Name == "svg" {
		return false
	}
	if c.isHTMLIntegrationPoint(acn) &&
		(tok.Kind == htmlscan.StartTagToken || tok.Kind == htmlscan.CharsToken) {
		return false
	}
	return true
}

// --- Foreign content processing ---------------------------------------------

// breakoutAtoms are the HTML start tags that abort foreign content.
var breakoutAtoms = map[atom.Atom]bool{
	atom.B: true, atom.Big: true, atom.Blockquote: true, atom.Body: true,
	atom.Br: true, atom.Center: true, atom.Code: true, atom.Dd: true,
	atom.Div: true, atom.Dl: true, atom.Dt: true, atom.Em: true,
	atom.Embed: true, atom.H1: true, atom.H2: true, atom.H3: true,
	atom.H4: true, atom.H5: true, atom.H6: true, atom.Head: true,
	atom.Hr: true, atom.I: true, atom.Img: true, atom.Li: true,
	atom.Listing: true, atom.Menu: true, atom.Meta: true, atom.Nobr: true,
	atom.Ol: true, atom.P: true, atom.Pre: true, atom.Ruby: true,
	atom.S: true, atom.Small: true, atom.Span: true, atom.Strong: true,
	atom.Strike: true, atom.Sub: true, atom.Sup: true, atom.Table: true,
	atom.Tt: true, atom.U: true, atom.Ul: true, atom.Var: true,
}

func isBreakout(tok htmlscan.Token) bool {
	a := atom.Lookup([]byte(tok.Name))
	if breakoutAtoms[a] {
		return true
	}
	if a == atom.Font {
		for _, attr := range tok.Attrs {
			switch attr.Name.Local {
			case "color", "face", "size":
				return true
			}
		}
	}
	return false
}

func (c *ctor) foreignContent(tok htmlscan.Token) {
	switch tok.Kind {
	case htmlscan.CharsToken:
		text := tok.Text
		if strings.ContainsRune(text, 0) {
			c.report(markup.BadToken, tok.Loc, "NULL character replaced")
			text = strings.Map(func(r rune) rune {
				if r == 0 {
					return '�'
				}
				return r
			}, text)
		}
		c.insertText(text, tok.Loc)
		if !whitespaceOnly(text) {
			c.framesetOK = false
		}
	case htmlscan.CommentToken:
		c.signal(markup.Comment{Text: tok.Text, Loc: tok.Loc})
	case htmlscan.DoctypeToken:
		c.report(markup.BadDocument, tok.Loc, "stray doctype")
	case htmlscan.StartTagToken:
		if isBreakout(tok) {
			c.report(markup.BadContent, tok.Loc, "<%s> breaks out of foreign content", tok.Name)
			for {
				cur := c.current()
				if cur == nil || cur.isHTML() ||
					c.isMathMLTextIntegrationPoint(cur) || c.isHTMLIntegrationPoint(cur) {
					break
				}
				c.pop()
			}
			c.inMode(c.mode, tok)
			return
		}
		ns := markup.NsSVG
		if acn := c.adjustedCurrent(); acn != nil {
			ns = acn.name.Space
		}
		c.insertForeign(tok, ns)
	case htmlscan.EndTagToken:
		cur := c.current()
		if cur != nil && cur.name.Space == markup.NsSVG && cur.name.Local == "script" &&
			tok.Name == "script" {
			c.pop()
			return
		}
		if cur != nil && strings.ToLower(cur.name.Local) != tok.Name {
			c.report(markup.MisnestedTag, tok.Loc, "misnested </%s> in foreign content", tok.Name)
		}
		for i := len(c.stack) - 1; i >= 0; i-- {
			node := c.stack[i]
			if node.isHTML() {
				c.inMode(c.mode, tok)
				return
			}
			if strings.ToLower(node.name.Local) == tok.Name {
				c.popUntil(func(e *elem) bool { return e == node })
				return
			}
		}
	}
}

// insertForeign inserts an element in the MathML or SVG namespace,
// applying the specification's tag-name and attribute adjustments.
func (c *ctor) insertForeign(tok htmlscan.Token, ns string) {
	name := tok.Name
	if ns == markup.NsSVG {
		if adjusted, ok := svgTagAdjust[name]; ok {
			name = adjusted
		}
	}
	attrs := make([]markup.Attr, 0, len(tok.Attrs))
	for _, a := range tok.Attrs {
		attrs = append(attrs, adjustForeignAttr(a, ns))
	}
	e := &elem{name: markup.QName{Space: ns, Local: name}, attrs: attrs}
	c.push(e, tok.Loc)
	if tok.SelfClosing {
		c.pop()
	}
}

func adjustForeignAttr(a markup.Attr, ns string) markup.Attr {
	local := a.Name.Local
	if ns == markup.NsMathML && local == "definitionurl" {
		a.Name.Local = "definitionURL"
		return a
	}
	if ns == markup.NsSVG {
		if adjusted, ok := svgAttrAdjust[local]; ok {
			a.Name.Local = adjusted
			return a
		}
	}
	switch {
	case strings.HasPrefix(local, "xlink:"):
		a.Name = markup.QName{Space: markup.NsXLink, Local: local[len("xlink:"):]}
	case local == "xml:lang" || local == "xml:space":
		a.Name = markup.QName{Space: markup.NsXML, Local: local[len("xml:"):]}
	case local == "xmlns":
		a.Name = markup.QName{Space: markup.NsXMLNS, Local: "xmlns"}
	case local == "xmlns:xlink":
		a.Name = markup.QName{Space: markup.NsXMLNS, Local: "xlink"}
	}
	return a
}

// svgTagAdjust restores the mixed-case SVG element names the tokenizer
// lowercased.
var svgTagAdjust = map[string]string{
	"altglyph":            "altGlyph",
	"altglyphdef":         "altGlyphDef",
	"altglyphitem":        "altGlyphItem",
	"animatecolor":        "animateColor",
	"animatemotion":       "animateMotion",
	"animatetransform":    "animateTransform",
	"clippath":            "clipPath",
	"feblend":             "feBlend",
	"fecolormatrix":       "feColorMatrix",
	"fecomponenttransfer": "feComponentTransfer",
	"fecomposite":         "feComposite",
	"feconvolvematrix":    "feConvolveMatrix",
	"fediffuselighting":   "feDiffuseLighting",
	"fedisplacementmap":   "feDisplacementMap",
	"fedistantlight":      "feDistantLight",
	"fedropshadow":        "feDropShadow",
	"feflood":             "feFlood",
	"fefunca":             "feFuncA",
	"fefuncb":             "feFuncB",
	"fefuncg":             "feFuncG",
	"fefuncr":             "feFuncR",
	"fegaussianblur":      "feGaussianBlur",
	"feimage":             "feImage",
	"femerge":             "feMerge",
	"femergenode":         "feMergeNode",
	"femorphology":        "feMorphology",
	"feoffset":            "feOffset",
	"fepointlight":        "fePointLight",
	"fespecularlighting":  "feSpecularLighting",
	"fespotlight":         "feSpotLight",
	"fetile":              "feTile",
	"feturbulence":        "feTurbulence",
	"foreignobject":       "foreignObject",
	"glyphref":            "glyphRef",
	"lineargradient":      "linearGradient",
	"radialgradient":      "radialGradient",
	"textpath":            "textPath",
}

// svgAttrAdjust restores mixed-case SVG attribute names.
var svgAttrAdjust = map[string]string{
	"attributename":       "attributeName",
	"attributetype":       "attributeType",
	"basefrequency":       "baseFrequency",
	"baseprofile":         "baseProfile",
	"calcmode":            "calcMode",
	"clippathunits":       "clipPathUnits",
	"diffuseconstant":     "diffuseConstant",
	"edgemode":            "edgeMode",
	"filterunits":         "filterUnits",
	"glyphref":            "glyphRef",
	"gradienttransform":   "gradientTransform",
	"gradientunits":       "gradientUnits",
	"kernelmatrix":        "kernelMatrix",
	"kernelunitlength":    "kernelUnitLength",
	"keypoints":           "keyPoints",
	"keysplines":          "keySplines",
	"keytimes":            "keyTimes",
	"lengthadjust":        "lengthAdjust",
	"limitingconeangle":   "limitingConeAngle",
	"markerheight":        "markerHeight",
	"markerunits":         "markerUnits",
	"markerwidth":         "markerWidth",
	"maskcontentunits":    "maskContentUnits",
	"maskunits":           "maskUnits",
	"numoctaves":          "numOctaves",
	"pathlength":          "pathLength",
	"patterncontentunits": "patternContentUnits",
	"patterntransform":    "patternTransform",
	"patternunits":        "patternUnits",
	"pointsatx":           "pointsAtX",
	"pointsaty":           "pointsAtY",
	"pointsatz":           "pointsAtZ",
	"preservealpha":       "preserveAlpha",
	"preserveaspectratio": "preserveAspectRatio",
	"primitiveunits":      "primitiveUnits",
	"refx":                "refX",
	"refy":                "refY",
	"repeatcount":         "repeatCount",
	"repeatdur":           "repeatDur",
	"requiredextensions":  "requiredExtensions",
	"requiredfeatures":    "requiredFeatures",
	"specularconstant":    "specularConstant",
	"specularexponent":    "specularExponent",
	"spreadmethod":        "spreadMethod",
	"startoffset":         "startOffset",
	"stddeviation":        "stdDeviation",
	"stitchtiles":         "stitchTiles",
	"surfacescale":        "surfaceScale",
	"systemlanguage":      "systemLanguage",
	"tablevalues":         "tableValues",
	"targetx":             "targetX",
	"targety":             "targetY",
	"textlength":          "textLength",
	"viewbox":             "viewBox",
	"viewtarget":          "viewTarget",
	"xchannelselector":    "xChannelSelector",
	"ychannelselector":    "yChannelSelector",
	"zoomandpan":          "zoomAndPan",
}
