package registry

import (
	"encoding/json"
	"testing"

	"github.com/deshcart/deshcart-backend/pkg/enums"
)

func TestDecoderRegistry(t *testing.T) {
	reg := NewDecoderRegistry()
	reg.Register(enums.EventOrderPaid, 1, func(payload json.RawMessage) (interface{}, error) {
		var decoded map[string]string
		if err := json.Unmarshal(payload, &decoded); err != nil {
			return nil, err
		}
		return decoded, nil
	})

	input := json.RawMessage(`{"order_number":"DC-20260825-000001"}`)
	output, err := reg.Decode(enums.EventOrderPaid, 1, input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outMap, ok := output.(map[string]string); !ok || outMap["order_number"] != "DC-20260825-000001" {
		t.Fatalf("unexpected output %+v", output)
	}

	if _, err := reg.Decode(enums.EventOrderPaid, 2, input); err == nil {
		t.Fatalf("expected error for unregistered version")
	}
}
