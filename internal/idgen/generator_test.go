package idgen

import (
	"sort"
	"testing"
)

func TestNew_AllStrategiesProduceUniqueIDs(t *testing.T) {
	for _, strategy := range []string{"", StrategyUUID, StrategyULID, StrategyKSUID, StrategyNanoID, StrategyCUID2} {
		t.Run("strategy="+strategy, func(t *testing.T) {
			gen, err := New(strategy)
			if err != nil {
				t.Fatalf("New(%q): %v", strategy, err)
			}

			seen := make(map[string]struct{})
			for i := 0; i < 200; i++ {
				id, err := gen.Generate()
				if err != nil {
					t.Fatalf("Generate: %v", err)
				}
				if id == "" {
					t.Fatal("empty id")
				}
				if _, dup := seen[id]; dup {
					t.Fatalf("duplicate id %q after %d ids", id, i)
				}
				seen[id] = struct{}{}
			}
		})
	}
}

func TestNew_UnknownStrategy(t *testing.T) {
	if _, err := New("snowflake"); err == nil {
		t.Fatal("expected error for unknown strategy")
	}
}

func TestULID_SortsInCreationOrder(t *testing.T) {
	gen := NewULIDGenerator()
	ids := make([]string, 50)
	for i := range ids {
		id, err := gen.Generate()
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		ids[i] = id
	}
	if !sort.StringsAreSorted(ids) {
		t.Errorf("ULIDs are not monotonic: %v", ids)
	}
}

func TestNanoID_Validation(t *testing.T) {
	if _, err := NewNanoIDGenerator(0, DefaultNanoIDAlphabet); err == nil {
		t.Error("expected error for size 0")
	}
	if _, err := NewNanoIDGenerator(10, "a"); err == nil {
		t.Error("expected error for 1-char alphabet")
	}
	gen, err := NewNanoIDGenerator(8, "ab")
	if err != nil {
		t.Fatalf("NewNanoIDGenerator: %v", err)
	}
	id, _ := gen.Generate()
	if len(id) != 8 {
		t.Errorf("len = %d, want 8", len(id))
	}
}

func TestCUID2_Validation(t *testing.T) {
	if _, err := NewCUID2Generator(1); err == nil {
		t.Error("expected error for length 1")
	}
	gen, err := NewCUID2Generator(10)
	if err != nil {
		t.Fatalf("NewCUID2Generator: %v", err)
	}
	id, _ := gen.Generate()
	if len(id) != 10 {
		t.Errorf("len = %d, want 10", len(id))
	}
}
