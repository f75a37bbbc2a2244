package rakuten

import (
	"context"
	"net/http"
	"net/url"

	"github.com/utafrali/RelistGo/internal/domain"
)

// InventoryUpsertRequest is the inventories 2.1 PUT body for a single
// variant.
type InventoryUpsertRequest struct {
	Mode              string                    `json:"mode"`
	Quantity          int                       `json:"quantity"`
	OperationLeadTime *domain.OperationLeadTime `json:"operationLeadTime,omitempty"`
	ShipFromIDs       []int                     `json:"shipFromIds,omitempty"`
}

// InventoryUpsert sets the stock of one variant. RMS answers 204.
func (c *Client) InventoryUpsert(ctx context.Context, manageNumber, variantID string, req *InventoryUpsertRequest) *Result {
	if manageNumber == "" || variantID == "" {
		return invalidResult("manage number and variant id are required")
	}
	if req == nil || req.Mode == "" {
		return invalidResult("inventory mode is required")
	}
	path := "/es/2.1/inventories/manage-numbers/" + url.PathEscape(manageNumber) +
		"/variants/" + url.PathEscape(variantID)
	return c.doJSON(ctx, http.MethodPut, path, req, http.StatusNoContent)
}
