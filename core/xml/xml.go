// Package xml provides pure Go XML parsing, XPath queries, validation,
// and formatting on top of xmlquery. It exists so the notation pipelines
// never shell out to an external XML toolchain.
//
// Security Notes:
//   - XXE (External Entity) attacks are mitigated by using Go's xml.Decoder
//     which doesn't fetch external entities by default, and we explicitly
//     disable entity expansion in validation functions.
//   - The xmlquery library is used for parsing, which uses Go's encoding/xml
//     internally and inherits its security properties.
package xml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
	"golang.org/x/net/html/charset"

	"github.com/cadenza-tools/cadenza/core/encoding"
)

// Document represents a parsed XML document.
type Document struct {
	root *xmlquery.Node
}

// Node represents an XML node (element, text, attribute, etc.).
type Node struct {
	node *xmlquery.Node
}

// ValidationResult contains the result of XML validation.
type ValidationResult struct {
	Valid  bool
	Errors []ValidationError
}

// ValidationError represents a single validation error.
type ValidationError struct {
	Line    int
	Column  int
	Message string
}

// FormatOptions controls XML formatting behavior.
type FormatOptions struct {
	Indent string // Indentation string (e.g., "  " or "\t")
}

// Parse parses UTF-8 XML data and returns a Document.
func Parse(data []byte) (*Document, error) {
	reader := bytes.NewReader(data)
	root, err := xmlquery.Parse(reader)
	if err != nil {
		return nil, fmt.Errorf("parsing XML: %w", err)
	}
	return &Document{root: root}, nil
}

// ParseWithCharset parses XML data that may carry a non-UTF-8 encoding
// declaration, transcoding it before parsing. Exported notation files
// in the wild still arrive in ISO-8859-1 and friends.
func ParseWithCharset(data []byte) (*Document, error) {
	reader, err := charset.NewReader(bytes.NewReader(data), "text/xml")
	if err != nil {
		return nil, fmt.Errorf("detecting XML charset: %w", err)
	}
	transcoded, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("transcoding XML: %w", err)
	}
	// The declaration's encoding attribute no longer matches the bytes;
	// encoding/xml rejects unknown encodings, so strip it.
	transcoded = stripEncodingDecl(transcoded)
	return Parse(transcoded)
}

// stripEncodingDecl removes the encoding attribute from the XML
// declaration, if present.
func stripEncodingDecl(data []byte) []byte {
	if !bytes.HasPrefix(data, []byte("<?xml")) {
		return data
	}
	end := bytes.Index(data, []byte("?>"))
	if end < 0 {
		return data
	}
	decl := data[:end]
	idx := bytes.Index(decl, []byte("encoding"))
	if idx < 0 {
		return data
	}
	rest := decl[idx:]
	quote := bytes.IndexAny(rest, `"'`)
	if quote < 0 {
		return data
	}
	closing := bytes.IndexByte(rest[quote+1:], rest[quote])
	if closing < 0 {
		return data
	}
	var out bytes.Buffer
	out.Write(bytes.TrimRight(decl[:idx], " "))
	out.Write(rest[quote+1+closing+1:])
	out.Write(data[end:])
	return out.Bytes()
}

// Validate validates XML data and returns a ValidationResult.
// If schema is nil, only well-formedness is checked.
//
// Security: This function is protected against XXE (XML External Entity)
// attacks by disabling entity expansion. Go's xml.Decoder does not fetch
// external entities by default, and internal entity expansion is
// disabled as well.
func Validate(data []byte, schema []byte) ValidationResult {
	result := ValidationResult{Valid: true}

	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.Entity = map[string]string{}
	decoder.CharsetReader = charset.NewReaderLabel

	for {
		_, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.Valid = false
			result.Errors = append(result.Errors, ValidationError{
				Line:    1, // xml.Decoder doesn't provide line numbers easily
				Column:  0,
				Message: err.Error(),
			})
			break
		}
	}

	return result
}

// Format formats/pretty-prints XML data.
func Format(data []byte, opts FormatOptions) ([]byte, error) {
	if opts.Indent == "" {
		opts.Indent = "  "
	}

	doc, err := Parse(data)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := formatNode(&buf, doc.root, 0, opts.Indent); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// formatNode recursively formats an XML node.
func formatNode(w *bytes.Buffer, n *xmlquery.Node, depth int, indent string) error {
	switch n.Type {
	case xmlquery.DocumentNode:
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			if err := formatNode(w, child, depth, indent); err != nil {
				return err
			}
		}

	case xmlquery.DeclarationNode:
		w.WriteString("<?xml")
		for _, attr := range n.Attr {
			w.WriteString(" ")
			w.WriteString(attr.Name.Local)
			w.WriteString("=\"")
			w.WriteString(encoding.EscapeXMLAttr(attr.Value))
			w.WriteString("\"")
		}
		w.WriteString("?>\n")

	case xmlquery.ElementNode:
		writeIndent(w, depth, indent)
		w.WriteString("<")
		if n.Prefix != "" {
			w.WriteString(n.Prefix)
			w.WriteString(":")
		}
		w.WriteString(n.Data)

		for _, attr := range n.Attr {
			w.WriteString(" ")
			if attr.Name.Space != "" {
				w.WriteString("xmlns:")
				w.WriteString(attr.Name.Local)
			} else if attr.Name.Local != "" {
				w.WriteString(attr.Name.Local)
			}
			w.WriteString("=\"")
			w.WriteString(encoding.EscapeXMLAttr(attr.Value))
			w.WriteString("\"")
		}

		hasChildren := n.FirstChild != nil
		hasElementChildren := false
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			if child.Type == xmlquery.ElementNode {
				hasElementChildren = true
				break
			}
		}

		if !hasChildren {
			w.WriteString("/>\n")
		} else {
			w.WriteString(">")
			if hasElementChildren {
				w.WriteString("\n")
			}

			for child := n.FirstChild; child != nil; child = child.NextSibling {
				if child.Type == xmlquery.ElementNode {
					if err := formatNode(w, child, depth+1, indent); err != nil {
						return err
					}
				} else if child.Type == xmlquery.TextNode {
					text := strings.TrimSpace(child.Data)
					if text != "" {
						if hasElementChildren {
							writeIndent(w, depth+1, indent)
						}
						w.WriteString(encoding.EscapeXMLText(child.Data))
						if hasElementChildren {
							w.WriteString("\n")
						}
					}
				} else if child.Type == xmlquery.CharDataNode {
					w.WriteString("<![CDATA[")
					w.WriteString(child.Data)
					w.WriteString("]]>")
				}
			}

			if hasElementChildren {
				writeIndent(w, depth, indent)
			}
			w.WriteString("</")
			if n.Prefix != "" {
				w.WriteString(n.Prefix)
				w.WriteString(":")
			}
			w.WriteString(n.Data)
			w.WriteString(">\n")
		}

	case xmlquery.TextNode:
		text := strings.TrimSpace(n.Data)
		if text != "" {
			w.WriteString(encoding.EscapeXMLText(text))
		}

	case xmlquery.CommentNode:
		writeIndent(w, depth, indent)
		w.WriteString("<!--")
		w.WriteString(n.Data)
		w.WriteString("-->\n")
	}

	return nil
}

func writeIndent(w *bytes.Buffer, depth int, indent string) {
	for i := 0; i < depth; i++ {
		w.WriteString(indent)
	}
}

// Root returns the root element of the document.
func (d *Document) Root() *Node {
	if d.root == nil {
		return nil
	}
	for child := d.root.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode {
			return &Node{node: child}
		}
	}
	return nil
}

// XPath executes an XPath query and returns matching nodes.
func (d *Document) XPath(expr string) ([]*Node, error) {
	return queryAll(d.root, expr)
}

// XPathFirst executes an XPath query and returns the first matching node.
func (d *Document) XPathFirst(expr string) (*Node, error) {
	return queryFirst(d.root, expr)
}

// XPath executes an XPath query relative to this node.
func (n *Node) XPath(expr string) ([]*Node, error) {
	if n.node == nil {
		return nil, nil
	}
	return queryAll(n.node, expr)
}

// XPathFirst executes an XPath query relative to this node and returns
// the first match.
func (n *Node) XPathFirst(expr string) (*Node, error) {
	if n.node == nil {
		return nil, nil
	}
	return queryFirst(n.node, expr)
}

func queryAll(root *xmlquery.Node, expr string) ([]*Node, error) {
	if _, err := xpath.Compile(expr); err != nil {
		return nil, fmt.Errorf("invalid xpath: %w", err)
	}
	nodes, err := xmlquery.QueryAll(root, expr)
	if err != nil {
		return nil, fmt.Errorf("xpath query failed: %w", err)
	}
	result := make([]*Node, len(nodes))
	for i, n := range nodes {
		result[i] = &Node{node: n}
	}
	return result, nil
}

func queryFirst(root *xmlquery.Node, expr string) (*Node, error) {
	if _, err := xpath.Compile(expr); err != nil {
		return nil, fmt.Errorf("invalid xpath: %w", err)
	}
	node, err := xmlquery.Query(root, expr)
	if err != nil {
		return nil, fmt.Errorf("xpath query failed: %w", err)
	}
	if node == nil {
		return nil, nil
	}
	return &Node{node: node}, nil
}

// Serialize converts the document back to XML bytes.
func (d *Document) Serialize() []byte {
	if d.root == nil {
		return nil
	}
	return []byte(d.root.OutputXML(true))
}

// Name returns the element name.
func (n *Node) Name() string {
	if n.node == nil {
		return ""
	}
	return n.node.Data
}

// Text returns the text content of the node.
func (n *Node) Text() string {
	if n.node == nil {
		return ""
	}
	return n.node.InnerText()
}

// InnerText returns all text content of the node and its descendants.
func (n *Node) InnerText() string {
	if n.node == nil {
		return ""
	}
	return n.node.InnerText()
}

// InnerXML returns the inner XML of the node.
func (n *Node) InnerXML() string {
	if n.node == nil {
		return ""
	}
	var buf bytes.Buffer
	for child := n.node.FirstChild; child != nil; child = child.NextSibling {
		buf.WriteString(child.OutputXML(true))
	}
	return buf.String()
}

// Children returns the child element nodes.
func (n *Node) Children() []*Node {
	if n.node == nil {
		return nil
	}

	var children []*Node
	for child := n.node.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode {
			children = append(children, &Node{node: child})
		}
	}
	return children
}

// Attributes returns all attributes of the node.
func (n *Node) Attributes() map[string]string {
	if n.node == nil {
		return nil
	}

	attrs := make(map[string]string)
	for _, attr := range n.node.Attr {
		attrs[attr.Name.Local] = attr.Value
	}
	return attrs
}

// Attr returns the value of a specific attribute.
func (n *Node) Attr(name string) string {
	if n.node == nil {
		return ""
	}
	return n.node.SelectAttr(name)
}
