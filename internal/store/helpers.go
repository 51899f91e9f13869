package store

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/BTreeMap/Vicky/internal/models"
)

// marshalCollected encodes the collected answers for a text/JSON column.
func marshalCollected(c models.Collected) ([]byte, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal collected answers: %w", err)
	}
	return b, nil
}

// unmarshalCollected decodes a stored column. A corrupt value yields empty
// answers rather than a failed turn; the funnel simply re-asks.
func unmarshalCollected(senderID string, raw []byte) models.Collected {
	var c models.Collected
	if len(raw) == 0 {
		return c
	}
	if err := json.Unmarshal(raw, &c); err != nil {
		slog.Error("store: collected answers unreadable, resetting", "error", err, "sender", senderID)
		return models.Collected{}
	}
	return c
}
