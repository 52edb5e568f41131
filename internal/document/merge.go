package document

import "github.com/google/uuid"

// importedCategoryName holds entries shared without any category context.
const importedCategoryName = "Imported"

// newCategoryID generates an id for a category created during import.
func newCategoryID() string {
	return "c_" + uuid.NewString()
}

// MergeDocument folds a shared document into the local one. Categories are
// matched by id first, then by name; entries already present (same id) are
// skipped so an import never duplicates or overwrites local data.
func (d *Document) MergeDocument(shared *Document) int {
	added := 0
	for _, sc := range shared.Categories {
		local := d.FindCategory(sc.ID)
		if local == nil {
			local = d.findCategoryByName(sc.Name)
		}
		if local == nil {
			nc := sc
			nc.Software = append([]SoftwareEntry(nil), sc.Software...)
			d.Categories = append(d.Categories, nc)
			added += len(sc.Software)
			continue
		}
		for _, s := range sc.Software {
			if local.hasEntry(s.ID) {
				continue
			}
			local.Software = append(local.Software, s)
			added++
		}
	}
	return added
}

// MergeEntry imports a single shared entry into the category identified by
// catID (falling back to catName, then to a new category). Entries with no
// category at all land in a shared "Imported" category, found by name so
// repeated imports reuse it instead of stacking duplicates.
func (d *Document) MergeEntry(entry SoftwareEntry, catID, catName string) bool {
	if catID == "" && catName == "" {
		catName = importedCategoryName
	}
	target := d.FindCategory(catID)
	if target == nil {
		target = d.findCategoryByName(catName)
	}
	if target == nil {
		id := catID
		if id == "" {
			id = newCategoryID()
		}
		name := catName
		if name == "" {
			name = importedCategoryName
		}
		d.Categories = append(d.Categories, Category{
			ID:       id,
			Name:     name,
			Sort:     99,
			Software: []SoftwareEntry{entry},
		})
		return true
	}
	if target.hasEntry(entry.ID) {
		return false
	}
	target.Software = append(target.Software, entry)
	return true
}

func (d *Document) findCategoryByName(name string) *Category {
	for i := range d.Categories {
		if d.Categories[i].Name == name {
			return &d.Categories[i]
		}
	}
	return nil
}

func (c *Category) hasEntry(id string) bool {
	for _, s := range c.Software {
		if s.ID == id {
			return true
		}
	}
	return false
}
