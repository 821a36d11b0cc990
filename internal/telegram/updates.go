package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// requestSlack is added on top of the long-poll wait so the HTTP request
// outlives the server-side timeout.
const requestSlack = 10 * time.Second

// GetUpdates long-polls for updates. The call blocks on the server for up to
// params.Timeout seconds when nothing is pending.
func (c *Client) GetUpdates(ctx context.Context, params GetUpdatesParams) ([]Update, error) {
	q := url.Values{}
	if params.Offset > 0 {
		q.Set("offset", strconv.FormatInt(params.Offset, 10))
	}
	if params.Timeout > 0 {
		q.Set("timeout", strconv.Itoa(params.Timeout))
	}
	if len(params.AllowedUpdates) > 0 {
		allowed, err := json.Marshal(params.AllowedUpdates)
		if err != nil {
			return nil, fmt.Errorf("marshal allowed_updates: %w", err)
		}
		q.Set("allowed_updates", string(allowed))
	}

	reqCtx, cancel := context.WithTimeout(ctx, time.Duration(params.Timeout)*time.Second+requestSlack)
	defer cancel()

	var updates []Update
	if err := c.get(reqCtx, "getUpdates", q, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}
