// Package xmlconfig turns mail client configuration documents into IMAP
// candidates. It understands the Mozilla autoconfig schema (incomingServer)
// and the Microsoft Autodiscover schema (Protocol).
package xmlconfig

import (
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/tbckr/imapdetect/internal/imapconf"
)

// DefaultTags lists the record element names searched by Extract.
var DefaultTags = []string{"incomingServer", "Protocol"}

// Extract parses xmlText and returns every IMAP record found under the given
// tags, in tag order and document order within a tag. DefaultTags is used when
// no tags are given. Unparsable documents and documents without a usable IMAP
// record yield nil.
func Extract(xmlText string, tags ...string) []imapconf.Candidate {
	if len(tags) == 0 {
		tags = DefaultTags
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromString(xmlText); err != nil {
		return nil
	}
	if doc.Root() == nil {
		return nil
	}

	var out []imapconf.Candidate
	for _, tag := range tags {
		for _, rec := range FindFirst(&doc.Element, tag) {
			if c, ok := normalize(rec); ok {
				out = append(out, c)
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// FindFirst walks the tree below root depth-first and returns the children
// named tag of the first element that has any. An element's own children are
// checked before its subtrees. It returns nil when no element matches.
func FindFirst(root *etree.Element, tag string) []*etree.Element {
	if root == nil {
		return nil
	}
	var matches []*etree.Element
	for _, child := range root.ChildElements() {
		if child.Tag == tag {
			matches = append(matches, child)
		}
	}
	if len(matches) > 0 {
		return matches
	}
	for _, child := range root.ChildElements() {
		if found := FindFirst(child, tag); found != nil {
			return found
		}
	}
	return nil
}

func normalize(rec *etree.Element) (imapconf.Candidate, bool) {
	if field(rec, "type", "Type") != "imap" {
		return imapconf.Candidate{}, false
	}
	port, err := strconv.Atoi(field(rec, "port", "Port"))
	if err != nil {
		return imapconf.Candidate{}, false
	}
	c := imapconf.Candidate{
		Host:   field(rec, "hostname", "Server"),
		Port:   port,
		Secure: field(rec, "socketType") == "SSL" || field(rec, "SSL") == "on",
	}
	return c, c.Valid()
}

// field returns the first non-empty value among names, looking at the
// element's attributes before its child elements.
func field(rec *etree.Element, names ...string) string {
	for _, name := range names {
		if v := strings.TrimSpace(rec.SelectAttrValue(name, "")); v != "" {
			return v
		}
		if child := rec.SelectElement(name); child != nil {
			if v := strings.TrimSpace(child.Text()); v != "" {
				return v
			}
		}
	}
	return ""
}
