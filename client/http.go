package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Shubbu03/illustrations/shape"
	"github.com/Shubbu03/illustrations/store"
)

// DefaultFetchLimit bounds one page of the baseline shape fetch.
const DefaultFetchLimit = 500

// FetchShapes loads the room's durable shapes from the server's HTTP
// surface. The server returns rows most recent first; the result is
// reversed so the oldest stroke draws first.
func FetchShapes(ctx context.Context, baseURL string, roomID int64) ([]shape.Shape, error) {
	url := fmt.Sprintf("%s/rooms/%d/shapes?limit=%d", baseURL, roomID, DefaultFetchLimit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build shapes request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch shapes: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch shapes: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Shapes []store.ChatRow `json:"shapes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode shapes response: %w", err)
	}
	return ShapesFromRows(body.Shapes), nil
}

// ShapesFromRows maps chat rows to shapes, attaching each row's durable
// id and restoring draw order (rows arrive newest first).
func ShapesFromRows(rows []store.ChatRow) []shape.Shape {
	shapes := make([]shape.Shape, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		s, err := shape.Decode(rows[i].Message)
		if err != nil {
			continue
		}
		s.DBID = rows[i].ID
		shapes = append(shapes, s)
	}
	return shapes
}
