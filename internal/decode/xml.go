package decode

import (
	"bytes"
	"encoding/xml"
	"io"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
)

// decodeXML parses an XML document into one nested-map record. Attributes
// merge into the node's fields, leaf text becomes a "text" field, and
// repeated child tags collapse into a list. Parse failures fall back to a
// single record holding the raw XML.
func decodeXML(text string) []map[string]any {
	doc, err := parseXML([]byte(text))
	if err != nil || len(doc) == 0 {
		return []map[string]any{{"xml_content": text}}
	}
	return []map[string]any{doc}
}

func parseXML(data []byte) (map[string]any, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charsetReader
	dec.Strict = false

	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		if start, ok := tok.(xml.StartElement); ok {
			return xmlNode(dec, start)
		}
	}
}

// xmlNode consumes one element (the start token already read) and returns it
// as a map.
func xmlNode(dec *xml.Decoder, start xml.StartElement) (map[string]any, error) {
	node := map[string]any{}
	var text strings.Builder

	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			child, err := xmlNode(dec, t)
			if err != nil {
				return nil, err
			}
			name := t.Name.Local
			if existing, ok := node[name]; ok {
				if list, ok := existing.([]any); ok {
					node[name] = append(list, child)
				} else {
					node[name] = []any{existing, child}
				}
			} else {
				node[name] = child
			}
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			if s := strings.TrimSpace(text.String()); s != "" {
				node["text"] = s
			}
			// Attributes merge last, matching the node's field precedence.
			for _, attr := range start.Attr {
				node[attr.Name.Local] = attr.Value
			}
			return node, nil
		}
	}
}

func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, err
	}
	return enc.NewDecoder().Reader(input), nil
}
