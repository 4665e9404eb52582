package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/jhttp"

	"callIndexer/internal/model"
)

// Client talks JSON-RPC 2.0 to a Soroban RPC endpoint.
type Client struct {
	rpcClient *jrpc2.Client
	timeout   time.Duration
}

// NewClient builds a client over HTTP. No request is made until the first
// call. A zero timeout leaves calls bounded only by ctx.
func NewClient(_ context.Context, rpcURL string, timeout time.Duration) (*Client, error) {
	if rpcURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}

	return &Client{
		rpcClient: jrpc2.NewClient(jhttp.NewChannel(rpcURL, nil), nil),
		timeout:   timeout,
	}, nil
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		_ = c.rpcClient.Close()
	}
}

// LatestLedger returns the most recent ledger sequence known to the RPC node.
func (c *Client) LatestLedger(ctx context.Context) (uint32, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var res getLatestLedgerResult
	if err := c.rpcClient.CallResult(ctx, "getLatestLedger", nil, &res); err != nil {
		return 0, fmt.Errorf("getLatestLedger: %w", err)
	}
	return res.Sequence, nil
}

// GetEvents fetches one page of contract events. When cursor is set the node
// resumes after it and startLedger is not sent.
func (c *Client) GetEvents(ctx context.Context, startLedger uint32, contractIDs []string, limit uint, cursor string) (EventPage, error) {
	if len(contractIDs) == 0 {
		return EventPage{}, fmt.Errorf("at least one contract id is required")
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req := getEventsRequest{
		Filters:    []EventFilter{{Type: eventTypeContract, ContractIDs: contractIDs}},
		Pagination: &Pagination{Limit: limit, Cursor: cursor},
	}
	if cursor == "" {
		req.StartLedger = startLedger
	}

	var res getEventsResult
	if err := c.rpcClient.CallResult(ctx, "getEvents", req, &res); err != nil {
		return EventPage{}, fmt.Errorf("getEvents: %w", err)
	}

	page := EventPage{
		Events:       make([]model.RawEvent, 0, len(res.Events)),
		LatestLedger: res.LatestLedger,
		Cursor:       res.Cursor,
	}
	for _, ev := range res.Events {
		if ev.Type != "" && ev.Type != eventTypeContract {
			continue
		}
		raw, err := ev.toRaw()
		if err != nil {
			return EventPage{}, err
		}
		page.Events = append(page.Events, raw)
	}
	if page.Cursor == "" && len(page.Events) > 0 {
		page.Cursor = page.Events[len(page.Events)-1].PagingToken
	}
	return page, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}
