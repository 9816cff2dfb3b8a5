package chat

import "testing"

func TestStoreAddDeduplicates(t *testing.T) {
	s := NewStore()

	if !s.Add(peerMsg(1, "hello")) {
		t.Error("First add should succeed")
	}
	if s.Add(peerMsg(1, "hello again")) {
		t.Error("Duplicate id should be rejected")
	}
	if s.Len() != 1 {
		t.Errorf("Expected 1 message, got %d", s.Len())
	}
	if !s.Contains(1) {
		t.Error("Store should contain id 1")
	}
	if s.Contains(2) {
		t.Error("Store should not contain id 2")
	}
}

func TestStorePreservesMergeOrder(t *testing.T) {
	s := NewStore()
	s.Add(peerMsg(3, "c"))
	s.Add(peerMsg(1, "a"))
	s.Add(peerMsg(2, "b"))

	msgs := s.Messages()
	want := []int64{3, 1, 2}
	if len(msgs) != len(want) {
		t.Fatalf("Expected %d messages, got %d", len(want), len(msgs))
	}
	for i, id := range want {
		if msgs[i].ID != id {
			t.Errorf("Position %d: expected id %d, got %d", i, id, msgs[i].ID)
		}
	}
}

func TestHighWaterMonotonic(t *testing.T) {
	s := NewStore()

	if s.HighWater() != 0 {
		t.Errorf("Fresh store high water should be 0, got %d", s.HighWater())
	}

	s.AdvanceHighWater(10)
	if s.HighWater() != 10 {
		t.Errorf("Expected high water 10, got %d", s.HighWater())
	}

	// Lower values never regress the mark
	s.AdvanceHighWater(5)
	if s.HighWater() != 10 {
		t.Errorf("High water regressed to %d", s.HighWater())
	}

	s.AdvanceHighWater(12)
	if s.HighWater() != 12 {
		t.Errorf("Expected high water 12, got %d", s.HighWater())
	}
}

func TestStoreReset(t *testing.T) {
	s := NewStore()
	s.Add(peerMsg(1, "a"))
	s.AdvanceHighWater(1)

	s.Reset()

	if s.Len() != 0 {
		t.Errorf("Expected empty store after reset, got %d messages", s.Len())
	}
	if s.HighWater() != 0 {
		t.Errorf("Expected high water 0 after reset, got %d", s.HighWater())
	}
	if s.Contains(1) {
		t.Error("Reset store should not contain old ids")
	}
	if !s.Add(peerMsg(1, "a")) {
		t.Error("Old id should be addable after reset")
	}
}
