package ai

import (
	"context"
	"encoding/json"
)

// ToolExecutor runs the store lookups the model may request through function
// calling. Results are marshaled verbatim into tool messages.
type ToolExecutor interface {
	FindProduct(ctx context.Context, query string) (any, error)
	CheckStock(ctx context.Context, productID int64) (any, error)
}

type oaTool struct {
	Type     string         `json:"type"`
	Function oaToolFunction `json:"function"`
}

type oaToolFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

func toolDefinitions() []oaTool {
	return []oaTool{
		{
			Type: "function",
			Function: oaToolFunction{
				Name:        "find_product",
				Description: "Search for products by name, SKU, or category",
				Parameters: json.RawMessage(`{
					"type": "object",
					"properties": {
						"query": {
							"type": "string",
							"description": "Search query (product name, SKU, or category)"
						}
					},
					"required": ["query"]
				}`),
			},
		},
		{
			Type: "function",
			Function: oaToolFunction{
				Name:        "check_stock",
				Description: "Check stock status of a product",
				Parameters: json.RawMessage(`{
					"type": "object",
					"properties": {
						"product_id": {
							"type": "integer",
							"description": "Product ID"
						}
					},
					"required": ["product_id"]
				}`),
			},
		},
	}
}

// executeTool dispatches one requested tool call. Unknown names and executor
// failures produce inert error payloads rather than failing the turn.
func executeTool(ctx context.Context, exec ToolExecutor, name string, args json.RawMessage) any {
	switch name {
	case "find_product":
		var a struct {
			Query string `json:"query"`
		}
		if err := json.Unmarshal(args, &a); err != nil {
			return map[string]string{"error": "invalid arguments"}
		}
		res, err := exec.FindProduct(ctx, a.Query)
		if err != nil {
			return map[string]string{"error": "product search failed"}
		}
		return res

	case "check_stock":
		var a struct {
			ProductID int64 `json:"product_id"`
		}
		if err := json.Unmarshal(args, &a); err != nil {
			return map[string]string{"error": "invalid arguments"}
		}
		res, err := exec.CheckStock(ctx, a.ProductID)
		if err != nil {
			return map[string]string{"error": "stock check failed"}
		}
		return res

	default:
		return map[string]string{"error": "unknown function"}
	}
}
