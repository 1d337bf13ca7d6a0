package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"

	"github.com/samirrijal/menuwatch/internal/core/domain"
	"github.com/samirrijal/menuwatch/internal/pkg/config"
	"github.com/samirrijal/menuwatch/internal/pkg/jsontree"
)

// DefaultNearbyQuery is used when no query or captured payload is configured.
const DefaultNearbyQuery = `query NearbyStores($region: String!, $channel: Channel!, $serviceMode: PosDataServiceMode!, $lat: Float!, $lon: Float!, $limit: Int) {
  nearbyStores(region: $region, channel: $channel, serviceMode: $serviceMode, location: { latitude: $lat, longitude: $lon }, limit: $limit) {
    id
    latitude
    longitude
    distanceMeters
    address { city province line1 postalCode }
  }
}`

// Keys the generated request owns; merged payloads never replace them.
var (
	protectedInputKeys = []string{"location", "limit", "region", "channel", "serviceMode"}
	protectedFlatKeys  = []string{"lat", "lon", "region", "channel", "serviceMode"}
)

// NearbyClient implements ports.NearbyGateway.
type NearbyClient struct {
	client       *Client
	operation    string
	query        string
	expectsInput bool
	payloadInput map[string]any
	inputMerge   map[string]any
	extra        map[string]any
	filter       string
	region       string
	channel      string
	serviceMode  string
}

// NewNearbyClient prepares the nearby request template. nb.Query may be
// GraphQL text or a JSON payload captured from browser dev tools (an object
// or an array whose first entry carries operationName, query and variables).
func NewNearbyClient(client *Client, gw config.GatewayConfig, nb config.NearbyConfig) (*NearbyClient, error) {
	extra, err := gw.ExtraVariables()
	if err != nil {
		return nil, err
	}
	inputMerge, err := nb.InputMerge()
	if err != nil {
		return nil, err
	}

	n := &NearbyClient{
		client:      client,
		operation:   nb.Operation,
		query:       strings.TrimSpace(nb.Query),
		inputMerge:  inputMerge,
		extra:       extra,
		filter:      nb.Filter,
		region:      gw.Region,
		channel:     gw.Channel,
		serviceMode: gw.ServiceMode,
	}
	if n.query == "" {
		n.query = DefaultNearbyQuery
	}
	if strings.HasPrefix(n.query, "[") || strings.HasPrefix(n.query, "{") {
		if err := n.loadPayload(n.query); err != nil {
			return nil, err
		}
	}

	name, expectsInput, err := inspectQuery(n.query)
	if err != nil {
		slog.Warn("nearby query did not parse, falling back to text inspection", "error", err)
		expectsInput = strings.Contains(n.query, "($input") || strings.Contains(n.query, "$input:")
	}
	n.expectsInput = expectsInput
	if n.operation == "" {
		n.operation = name
	}
	if n.operation == "" {
		return nil, fmt.Errorf("nearby: no operation name configured or found in the query")
	}
	return n, nil
}

func (n *NearbyClient) loadPayload(raw string) error {
	var blob any
	if err := json.Unmarshal([]byte(raw), &blob); err != nil {
		return fmt.Errorf("nearby.query looks like JSON but does not parse: %w", err)
	}
	if list, ok := blob.([]any); ok {
		if len(list) == 0 {
			return fmt.Errorf("nearby.query payload is an empty array")
		}
		blob = list[0]
	}
	entry, ok := blob.(map[string]any)
	if !ok {
		return fmt.Errorf("nearby.query payload must be an object")
	}

	if op, _ := entry["operationName"].(string); op != "" {
		n.operation = op
	}
	q, _ := entry["query"].(string)
	if strings.TrimSpace(q) == "" {
		return fmt.Errorf("nearby.query payload has no query text")
	}
	n.query = strings.TrimSpace(q)
	if vars, ok := entry["variables"].(map[string]any); ok {
		if input, ok := vars["input"].(map[string]any); ok {
			n.payloadInput = input
		}
	}
	return nil
}

// inspectQuery returns the first operation's name and whether it declares
// an $input variable.
func inspectQuery(query string) (string, bool, error) {
	doc, err := parser.Parse(parser.ParseParams{Source: query})
	if err != nil {
		return "", false, err
	}
	for _, def := range doc.Definitions {
		op, ok := def.(*ast.OperationDefinition)
		if !ok {
			continue
		}
		var name string
		if op.Name != nil {
			name = op.Name.Value
		}
		for _, vd := range op.VariableDefinitions {
			if vd.Variable != nil && vd.Variable.Name != nil && vd.Variable.Name.Value == "input" {
				return name, true, nil
			}
		}
		return name, false, nil
	}
	return "", false, fmt.Errorf("no operation definition")
}

// Operation returns the operation name sent to the gateway.
func (n *NearbyClient) Operation() string { return n.operation }

// Variables builds the request variables for one lookup.
func (n *NearbyClient) Variables(p domain.GeoPoint, limit int) map[string]any {
	if n.expectsInput {
		input := map[string]any{
			"filter":      n.filter,
			"region":      n.region,
			"channel":     n.channel,
			"serviceMode": n.serviceMode,
			"location":    map[string]any{"latitude": p.Lat, "longitude": p.Lon},
			"limit":       limit,
		}
		mergeExcept(input, n.payloadInput, protectedInputKeys)
		mergeExcept(input, n.inputMerge, nil)
		return map[string]any{"input": input}
	}

	vars := map[string]any{
		"region":      n.region,
		"channel":     n.channel,
		"serviceMode": n.serviceMode,
		"lat":         p.Lat,
		"lon":         p.Lon,
		"limit":       limit,
	}
	mergeExcept(vars, n.extra, protectedFlatKeys)
	return vars
}

// Nearby asks the gateway for locations around p. Any GraphQL error
// rejects the whole answer.
func (n *NearbyClient) Nearby(ctx context.Context, p domain.GeoPoint, limit int) (*jsontree.Node, error) {
	doc, err := n.client.Post(ctx, n.operation, n.query, n.Variables(p, limit))
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func mergeExcept(dst, src map[string]any, protected []string) {
	for k, v := range src {
		if contains(protected, k) {
			continue
		}
		dst[k] = v
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
