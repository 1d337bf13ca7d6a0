package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/samirrijal/menuwatch/internal/core/domain"
	"github.com/samirrijal/menuwatch/internal/pkg/config"
	"github.com/samirrijal/menuwatch/internal/pkg/jsontree"
)

const storeMenuOperation = "StoreMenu"

// Enums go lower-case; PosDataServiceMode rejects anything else.
const storeMenuQuery = `query StoreMenu($storeId: ID!, $region: String!, $channel: Channel!, $serviceMode: PosDataServiceMode!) {
  storeMenu(storeId: $storeId, region: $region, channel: $channel, serviceMode: $serviceMode) {
    id
    isAvailable
    price { default }
  }
}`

// MenuClient implements ports.MenuGateway.
type MenuClient struct {
	client      *Client
	region      string
	channel     string
	serviceMode string
	extra       map[string]any
}

// NewMenuClient creates a MenuClient.
func NewMenuClient(client *Client, cfg config.GatewayConfig) (*MenuClient, error) {
	extra, err := cfg.ExtraVariables()
	if err != nil {
		return nil, err
	}
	return &MenuClient{
		client:      client,
		region:      cfg.Region,
		channel:     cfg.Channel,
		serviceMode: cfg.ServiceMode,
		extra:       extra,
	}, nil
}

func (m *MenuClient) variables(locationID string) map[string]any {
	vars := map[string]any{
		"storeId":     locationID,
		"region":      m.region,
		"channel":     m.channel,
		"serviceMode": m.serviceMode,
	}
	for k, v := range m.extra {
		if k == "serviceMode" {
			continue
		}
		vars[k] = v
	}
	return vars
}

// StoreMenu fetches one location's menu availability. Field-level GraphQL
// errors are logged and whatever storeMenu list came back is still used.
func (m *MenuClient) StoreMenu(ctx context.Context, locationID string) ([]domain.MenuEntry, error) {
	doc, err := m.client.Post(ctx, storeMenuOperation, storeMenuQuery, m.variables(locationID))
	if err != nil {
		var rerr *ResponseError
		if doc == nil || !errors.As(err, &rerr) || rerr.GraphQLErrors == "" {
			return nil, err
		}
		menu := doc.Get("data").Get("storeMenu")
		if menu == nil || menu.Kind != jsontree.Sequence {
			return nil, err
		}
		slog.Warn("storeMenu returned partial data",
			"location_id", locationID, "graphql_errors", rerr.GraphQLErrors)
		return parseMenu(menu), nil
	}
	menu := doc.Get("data").Get("storeMenu")
	if menu == nil || menu.Kind == jsontree.Null {
		return nil, nil
	}
	if menu.Kind != jsontree.Sequence {
		return nil, fmt.Errorf("storeMenu: expected a list, got %s", menu.Kind)
	}
	return parseMenu(menu), nil
}

func parseMenu(menu *jsontree.Node) []domain.MenuEntry {
	entries := make([]domain.MenuEntry, 0, len(menu.Items))
	for _, it := range menu.Items {
		if it.Kind != jsontree.Mapping {
			continue
		}
		e := domain.MenuEntry{
			ItemID:    it.Get("id").Text(),
			Available: it.Get("isAvailable").Truthy(),
		}
		if f, ok := it.Get("price").Get("default").Float(); ok && math.Abs(f) < math.MaxInt32 {
			cents := int(math.Round(f))
			e.PriceCents = &cents
		}
		entries = append(entries, e)
	}
	return entries
}
