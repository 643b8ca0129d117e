package models

import "testing"

func TestMaterialTypeLabel(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		value MaterialType
		want  string
		valid bool
	}{
		{"essential oil", MaterialTypeEssentialOil, "Essential oil", true},
		{"synthetic", MaterialTypeSynthetic, "Synthetic", true},
		{"absolute", MaterialTypeAbsolute, "Absolute", true},
		{"unknown", MaterialType("XX"), "XX", false},
	}

	for _, tt := range cases {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.value.Label(); got != tt.want {
				t.Fatalf("Label() = %q, want %q", got, tt.want)
			}
			if got := tt.value.Valid(); got != tt.valid {
				t.Fatalf("Valid() = %t, want %t", got, tt.valid)
			}
		})
	}
}

func TestAbstractMaterialCloneDoesNotShareSlices(t *testing.T) {
	t.Parallel()

	family := "citrus"
	original := AbstractMaterial{
		ID:     1,
		Name:   "Bergamot",
		Family: &family,
		Tags:   []MaterialTag{{MaterialID: 1, Value: "fresh"}},
		Links:  []MaterialLink{{MaterialID: 1, Value: "https://example.com"}},
	}

	clone := original.Clone()
	clone.Tags[0].Value = "changed"
	*clone.Family = "woody"

	if original.Tags[0].Value != "fresh" {
		t.Fatalf("clone shares tag slice with original")
	}
	if *original.Family != "citrus" {
		t.Fatalf("clone shares family pointer with original")
	}
	if got := original.TagValues(); len(got) != 1 || got[0] != "fresh" {
		t.Fatalf("TagValues() = %v", got)
	}
	if got := original.LinkValues(); len(got) != 1 || got[0] != "https://example.com" {
		t.Fatalf("LinkValues() = %v", got)
	}
}

func TestMaterialHasSplit(t *testing.T) {
	t.Parallel()

	grams := 4.0
	pure := Material{ID: 1}
	dilution := Material{ID: 2, GramsMaterial: &grams, GramsSolvent: &grams}

	if pure.HasSplit() {
		t.Fatal("pure lot reported a split")
	}
	if !dilution.HasSplit() {
		t.Fatal("dilution lot did not report a split")
	}

	clone := dilution.Clone()
	*clone.GramsMaterial = 9
	if *dilution.GramsMaterial != 4 {
		t.Fatal("clone shares grams pointer with original")
	}
}

func TestTrialMaterialIDs(t *testing.T) {
	t.Parallel()

	trial := Trial{Entries: []TrialMaterial{{MaterialID: 3}, {MaterialID: 7}}}
	ids := trial.MaterialIDs()
	if len(ids) != 2 || ids[0] != 3 || ids[1] != 7 {
		t.Fatalf("MaterialIDs() = %v", ids)
	}
}
