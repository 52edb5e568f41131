package document

import "testing"

func TestMergeDocument(t *testing.T) {
	t.Run("adds new category with all entries", func(t *testing.T) {
		local := &Document{Categories: []Category{
			{ID: "c1", Name: "A", Software: []SoftwareEntry{{ID: "s1", Name: "X"}}},
		}}
		shared := &Document{Categories: []Category{
			{ID: "c2", Name: "B", Software: []SoftwareEntry{
				{ID: "s2", Name: "Y"},
				{ID: "s3", Name: "Z"},
			}},
		}}

		added := local.MergeDocument(shared)

		if added != 2 {
			t.Errorf("expected 2 added, got %d", added)
		}
		if len(local.Categories) != 2 {
			t.Fatalf("expected 2 categories, got %d", len(local.Categories))
		}
	})

	t.Run("merges into existing category by id", func(t *testing.T) {
		local := &Document{Categories: []Category{
			{ID: "c1", Name: "A", Software: []SoftwareEntry{{ID: "s1", Name: "X"}}},
		}}
		shared := &Document{Categories: []Category{
			{ID: "c1", Name: "Renamed", Software: []SoftwareEntry{{ID: "s2", Name: "Y"}}},
		}}

		added := local.MergeDocument(shared)

		if added != 1 {
			t.Errorf("expected 1 added, got %d", added)
		}
		if len(local.Categories) != 1 {
			t.Fatalf("expected 1 category, got %d", len(local.Categories))
		}
		if len(local.Categories[0].Software) != 2 {
			t.Errorf("expected 2 entries, got %d", len(local.Categories[0].Software))
		}
	})

	t.Run("matches category by name when id differs", func(t *testing.T) {
		local := &Document{Categories: []Category{
			{ID: "c1", Name: "Tools", Software: []SoftwareEntry{{ID: "s1", Name: "X"}}},
		}}
		shared := &Document{Categories: []Category{
			{ID: "other-id", Name: "Tools", Software: []SoftwareEntry{{ID: "s2", Name: "Y"}}},
		}}

		if added := local.MergeDocument(shared); added != 1 {
			t.Errorf("expected 1 added, got %d", added)
		}
		if len(local.Categories) != 1 {
			t.Errorf("expected merge into existing category, got %d categories", len(local.Categories))
		}
	})

	t.Run("never overwrites existing entries", func(t *testing.T) {
		local := &Document{Categories: []Category{
			{ID: "c1", Name: "A", Software: []SoftwareEntry{{ID: "s1", Name: "Local"}}},
		}}
		shared := &Document{Categories: []Category{
			{ID: "c1", Name: "A", Software: []SoftwareEntry{{ID: "s1", Name: "Shared"}}},
		}}

		if added := local.MergeDocument(shared); added != 0 {
			t.Errorf("expected 0 added, got %d", added)
		}
		if local.Categories[0].Software[0].Name != "Local" {
			t.Error("existing entry was overwritten")
		}
	})
}

func TestMergeEntry(t *testing.T) {
	t.Run("adds to category by id", func(t *testing.T) {
		doc := &Document{Categories: []Category{{ID: "c1", Name: "A"}}}

		if !doc.MergeEntry(SoftwareEntry{ID: "s1", Name: "X"}, "c1", "") {
			t.Fatal("expected entry to be added")
		}
		if len(doc.Categories[0].Software) != 1 {
			t.Errorf("expected 1 entry, got %d", len(doc.Categories[0].Software))
		}
	})

	t.Run("falls back to category name", func(t *testing.T) {
		doc := &Document{Categories: []Category{{ID: "c1", Name: "Tools"}}}

		if !doc.MergeEntry(SoftwareEntry{ID: "s1", Name: "X"}, "missing", "Tools") {
			t.Fatal("expected entry to be added")
		}
		if len(doc.Categories) != 1 || len(doc.Categories[0].Software) != 1 {
			t.Error("expected entry merged into existing category")
		}
	})

	t.Run("creates imported category when no match", func(t *testing.T) {
		doc := &Document{}

		if !doc.MergeEntry(SoftwareEntry{ID: "s1", Name: "X"}, "", "") {
			t.Fatal("expected entry to be added")
		}
		if len(doc.Categories) != 1 {
			t.Fatalf("expected new category, got %d", len(doc.Categories))
		}
		cat := doc.Categories[0]
		if cat.Name != "Imported" || cat.ID == "" || cat.Sort != 99 {
			t.Errorf("unexpected fallback category: %+v", cat)
		}
	})

	t.Run("reuses the imported category across imports", func(t *testing.T) {
		doc := &Document{}

		if !doc.MergeEntry(SoftwareEntry{ID: "s1", Name: "X"}, "", "") {
			t.Fatal("expected first entry to be added")
		}
		if !doc.MergeEntry(SoftwareEntry{ID: "s2", Name: "Y"}, "", "") {
			t.Fatal("expected second entry to be added")
		}

		if len(doc.Categories) != 1 {
			t.Fatalf("expected one shared category, got %d", len(doc.Categories))
		}
		if len(doc.Categories[0].Software) != 2 {
			t.Errorf("expected both entries in it, got %d", len(doc.Categories[0].Software))
		}
		if err := doc.Validate(); err != nil {
			t.Errorf("merged document must stay valid: %v", err)
		}
	})

	t.Run("deduplicates category-less re-imports", func(t *testing.T) {
		doc := &Document{}

		doc.MergeEntry(SoftwareEntry{ID: "s1", Name: "X"}, "", "")
		if doc.MergeEntry(SoftwareEntry{ID: "s1", Name: "X again"}, "", "") {
			t.Error("expected re-import of the same entry to be skipped")
		}

		if n := len(doc.Categories[0].Software); n != 1 {
			t.Errorf("expected 1 entry, got %d", n)
		}
		if err := doc.Validate(); err != nil {
			t.Errorf("merged document must stay valid: %v", err)
		}
	})

	t.Run("generated category ids are unique", func(t *testing.T) {
		doc := &Document{}

		doc.MergeEntry(SoftwareEntry{ID: "s1", Name: "X"}, "", "One")
		doc.MergeEntry(SoftwareEntry{ID: "s2", Name: "Y"}, "", "Two")

		if len(doc.Categories) != 2 {
			t.Fatalf("expected 2 categories, got %d", len(doc.Categories))
		}
		if doc.Categories[0].ID == doc.Categories[1].ID {
			t.Error("expected distinct generated ids")
		}
		if err := doc.Validate(); err != nil {
			t.Errorf("merged document must stay valid: %v", err)
		}
	})

	t.Run("skips duplicate entry id", func(t *testing.T) {
		doc := &Document{Categories: []Category{
			{ID: "c1", Name: "A", Software: []SoftwareEntry{{ID: "s1", Name: "Local"}}},
		}}

		if doc.MergeEntry(SoftwareEntry{ID: "s1", Name: "Shared"}, "c1", "") {
			t.Error("expected duplicate to be skipped")
		}
		if doc.Categories[0].Software[0].Name != "Local" {
			t.Error("existing entry was overwritten")
		}
	})
}
