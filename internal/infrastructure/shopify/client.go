package shopify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"storefront-insights/internal/domain"
	"storefront-insights/internal/ports"

	goshopify "github.com/bold-commerce/go-shopify/v4"
	"github.com/rs/zerolog"
)

// DefaultAPIVersion is the Admin API version used when none is configured
const DefaultAPIVersion = "2024-10"

// catalogPageQuery fetches the first page of each entity type in one round trip
const catalogPageQuery = `
query storefrontPage($first: Int!) {
  products(first: $first) {
    edges {
      node {
        id
        title
        vendor
        productType
        variants(first: 1) {
          edges {
            node {
              price
            }
          }
        }
      }
    }
  }
  customers(first: $first) {
    edges {
      node {
        id
        firstName
        lastName
        email
      }
    }
  }
  orders(first: $first) {
    edges {
      node {
        id
        name
        createdAt
        totalPriceSet {
          shopMoney {
            amount
          }
        }
        customer {
          id
        }
      }
    }
  }
}
`

type catalogPageResponse struct {
	Products struct {
		Edges []struct {
			Node struct {
				ID          string `json:"id"`
				Title       string `json:"title"`
				Vendor      string `json:"vendor"`
				ProductType string `json:"productType"`
				Variants    struct {
					Edges []struct {
						Node struct {
							Price string `json:"price"`
						} `json:"node"`
					} `json:"edges"`
				} `json:"variants"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"products"`
	Customers struct {
		Edges []struct {
			Node struct {
				ID        string  `json:"id"`
				FirstName *string `json:"firstName"`
				LastName  *string `json:"lastName"`
				Email     *string `json:"email"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"customers"`
	Orders struct {
		Edges []struct {
			Node struct {
				ID            string    `json:"id"`
				Name          string    `json:"name"`
				CreatedAt     time.Time `json:"createdAt"`
				TotalPriceSet struct {
					ShopMoney struct {
						Amount string `json:"amount"`
					} `json:"shopMoney"`
				} `json:"totalPriceSet"`
				Customer *struct {
					ID string `json:"id"`
				} `json:"customer"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"orders"`
}

type client struct {
	app         goshopify.App
	accessToken string
	apiVersion  string
	httpClient  *http.Client
	logger      zerolog.Logger
}

// NewClient creates a catalog client for an Admin API access token.
// httpClient may be nil to use the library default.
func NewClient(
	apiKey, apiSecret, accessToken, apiVersion string,
	httpClient *http.Client,
	logger zerolog.Logger,
) ports.CatalogFetcher {
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}
	return &client{
		app: goshopify.App{
			ApiKey:    apiKey,
			ApiSecret: apiSecret,
		},
		accessToken: accessToken,
		apiVersion:  apiVersion,
		httpClient:  httpClient,
		logger:      logger,
	}
}

// createClient is a helper to create a goshopify client
func (c *client) createClient(shopDomain string) (*goshopify.Client, error) {
	opts := []goshopify.Option{goshopify.WithVersion(c.apiVersion)}
	if c.httpClient != nil {
		opts = append(opts, goshopify.WithHTTPClient(c.httpClient))
	}
	client, err := goshopify.NewClient(c.app, shopDomain, c.accessToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return client, nil
}

// FetchPage runs the catalog query and maps the result to domain types
func (c *client) FetchPage(ctx context.Context, shopDomain string, pageSize int) (*domain.CatalogPage, error) {
	client, err := c.createClient(shopDomain)
	if err != nil {
		return nil, err
	}

	var resp catalogPageResponse
	vars := map[string]interface{}{"first": pageSize}
	if err := client.GraphQL.Query(ctx, catalogPageQuery, vars, &resp); err != nil {
		return nil, fmt.Errorf("failed to query catalog page: %w", err)
	}

	page := &domain.CatalogPage{}
	for _, edge := range resp.Products.Edges {
		n := edge.Node
		product := domain.ExternalProduct{
			ID:          n.ID,
			Title:       n.Title,
			Vendor:      n.Vendor,
			ProductType: n.ProductType,
		}
		if len(n.Variants.Edges) > 0 {
			product.FirstVariantPrice = n.Variants.Edges[0].Node.Price
		}
		page.Products = append(page.Products, product)
	}
	for _, edge := range resp.Customers.Edges {
		n := edge.Node
		page.Customers = append(page.Customers, domain.ExternalCustomer{
			ID:        n.ID,
			FirstName: n.FirstName,
			LastName:  n.LastName,
			Email:     n.Email,
		})
	}
	for _, edge := range resp.Orders.Edges {
		n := edge.Node
		order := domain.ExternalOrder{
			ID:         n.ID,
			Name:       n.Name,
			CreatedAt:  n.CreatedAt,
			TotalPrice: n.TotalPriceSet.ShopMoney.Amount,
		}
		if n.Customer != nil {
			order.CustomerID = n.Customer.ID
		}
		page.Orders = append(page.Orders, order)
	}

	c.logger.Debug().
		Str("shop", shopDomain).
		Int("products", len(page.Products)).
		Int("customers", len(page.Customers)).
		Int("orders", len(page.Orders)).
		Msg("Fetched catalog page")

	return page, nil
}
