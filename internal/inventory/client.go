package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/veridia/plot-reservation/internal/model"
	"github.com/veridia/plot-reservation/internal/repository"
)

// UpdateStatusRequest is the wire form of the plot status RPC, shared
// by the client and the server handler.
type UpdateStatusRequest struct {
	Location        string           `json:"location"`
	Status          model.PlotStatus `json:"status"`
	ExpectedStatus  model.PlotStatus `json:"expectedStatus,omitempty"`
	CustomerData    *model.Customer  `json:"customerData,omitempty"`
	PaidAmount      int64            `json:"paidAmount,omitempty"`
	TransactionID   uint64           `json:"transactionId,omitempty"`
	OwnerNationalID string           `json:"ownerNationalId,omitempty"`
	ClaimedAt       *time.Time       `json:"claimedAt,omitempty"`
}

// Client reaches a remote plot inventory store over its status RPC.
// It satisfies StatusUpdater, so the orchestrator and the outbox relay
// work identically whether the store is in-process or split out.
type Client struct {
	base string
	http *http.Client
}

// NewClient builds a client for the store reachable at base, e.g.
// "http://inventory:8080".
func NewClient(base string) *Client {
	return &Client{
		base: base,
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

// UpdateStatus performs the transition remotely, translating HTTP
// statuses back into the store's error values.
func (c *Client) UpdateStatus(ctx context.Context, in UpdateStatusInput) (model.Plot, error) {
	body, err := json.Marshal(UpdateStatusRequest{
		Location:        in.Location,
		Status:          in.Status,
		ExpectedStatus:  in.ExpectedStatus,
		CustomerData:    in.Customer,
		PaidAmount:      in.PaidAmount,
		TransactionID:   in.TransactionID,
		OwnerNationalID: in.OwnerNationalID,
		ClaimedAt:       in.ClaimedAt,
	})
	if err != nil {
		return model.Plot{}, err
	}

	url := fmt.Sprintf("%s/internal/v1/plots/%d/status", c.base, in.PlotID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return model.Plot{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return model.Plot{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var p model.Plot
		if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
			return model.Plot{}, err
		}
		return p, nil
	case http.StatusNotFound:
		return model.Plot{}, repository.ErrPlotNotFound
	case http.StatusConflict:
		return model.Plot{}, repository.ErrStatusConflict
	case http.StatusBadRequest:
		return model.Plot{}, ErrInvalidTransition
	default:
		return model.Plot{}, fmt.Errorf("inventory status rpc: unexpected status %d", resp.StatusCode)
	}
}
