package gateway

import (
	"context"
	"strings"

	"github.com/samirrijal/menuwatch/internal/pkg/jsontree"
)

const introspectionQuery = `query __I { __schema { queryType { fields { name } } } }`

const maxListedFields = 30

var hintKeywords = []string{"near", "store", "restaurant", "location", "search"}

// SchemaHints summarises the gateway's query root for an operator picking a
// nearby operation.
type SchemaHints struct {
	Fields     []string `json:"fields"`
	Candidates []string `json:"candidates"`
	Total      int      `json:"total"`
}

// Introspect lists the gateway's query fields. Many deployments disable
// introspection; the error is then a *ResponseError.
func (c *Client) Introspect(ctx context.Context) (*SchemaHints, error) {
	doc, err := c.Post(ctx, "", introspectionQuery, nil)
	if err != nil {
		return nil, err
	}
	return schemaHints(doc), nil
}

func schemaHints(doc *jsontree.Node) *SchemaHints {
	fields := doc.Get("data").Get("__schema").Get("queryType").Get("fields")
	h := &SchemaHints{Fields: []string{}, Candidates: []string{}}
	if fields == nil || fields.Kind != jsontree.Sequence {
		return h
	}
	for _, f := range fields.Items {
		name := f.Get("name").Text()
		if name == "" {
			continue
		}
		h.Total++
		if len(h.Fields) < maxListedFields {
			h.Fields = append(h.Fields, name)
		}
		lower := strings.ToLower(name)
		for _, kw := range hintKeywords {
			if strings.Contains(lower, kw) {
				h.Candidates = append(h.Candidates, name)
				break
			}
		}
	}
	return h
}
