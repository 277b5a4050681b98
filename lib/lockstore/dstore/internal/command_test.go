package internal

import (
	"strings"
	"testing"
)

func TestCommandRoundTrip(t *testing.T) {
	commands := []Command{
		{
			Type:         CommandTPutIfVacant,
			Key:          "database#/data/app.sqlite",
			OwnerID:      "4f7c2d9e-8a13-4b6f-9c21-5e8d3a7f1b42",
			NowMillis:    1_700_000_000_000,
			ExpireMillis: 1_700_000_010_000,
		},
		{
			Type:    CommandTDeleteIfOwner,
			Key:     "database#/data/app.sqlite",
			OwnerID: "4f7c2d9e-8a13-4b6f-9c21-5e8d3a7f1b42",
		},
		{
			// Empty owner and key still round-trip.
			Type: CommandTPutIfVacant,
		},
		{
			Type:         CommandTPutIfVacant,
			Key:          strings.Repeat("k", 1024),
			OwnerID:      strings.Repeat("o", 512),
			NowMillis:    -1, // pre-epoch timestamps must survive the uint cast
			ExpireMillis: 1,
		},
	}

	for _, want := range commands {
		t.Run(want.Type.String(), func(t *testing.T) {
			data := want.Serialize()
			if len(data) != want.SizeBytes() {
				t.Errorf("Serialize produced %d bytes, SizeBytes says %d", len(data), want.SizeBytes())
			}

			var got Command
			if err := got.Deserialize(data); err != nil {
				t.Fatalf("Deserialize failed: %v", err)
			}
			if got != want {
				t.Errorf("round trip mismatch:\nwant %+v\ngot  %+v", want, got)
			}
		})
	}
}

func TestCommandDeserializeErrors(t *testing.T) {
	var cmd Command

	if err := cmd.Deserialize(nil); err == nil {
		t.Error("expected error for nil data")
	}
	if err := cmd.Deserialize(make([]byte, 10)); err == nil {
		t.Error("expected error for truncated header")
	}

	// Header that claims a longer key than the payload carries.
	valid := (&Command{Type: CommandTPutIfVacant, Key: "abc", OwnerID: "o"}).Serialize()
	if err := cmd.Deserialize(valid[:headerSize+1]); err == nil {
		t.Error("expected error for truncated key")
	}
}
