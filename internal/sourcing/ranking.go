package sourcing

import (
	"sort"

	"github.com/procurebot/procurement-backend/pkg/db/models"
	"github.com/procurebot/procurement-backend/pkg/types"
)

// Ranking is the ordered supplier list of a single product. Position 0 is the
// primary supplier. Positions map to sort_order 1..N with no gaps, so every
// mutation leaves the ranking dense.
type Ranking struct {
	productID types.ID
	suppliers []types.ID
}

// NewRanking builds a ranking from stored association rows, ordering by
// sort_order and then by supplier id to break ties left by manual edits.
func NewRanking(productID types.ID, rows []models.ProductSupplier) Ranking {
	sorted := make([]models.ProductSupplier, 0, len(rows))
	for _, row := range rows {
		if row.ProductID == productID {
			sorted = append(sorted, row)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].SortOrder != sorted[j].SortOrder {
			return sorted[i].SortOrder < sorted[j].SortOrder
		}
		return sorted[i].SupplierID < sorted[j].SupplierID
	})
	ids := make([]types.ID, 0, len(sorted))
	for _, row := range sorted {
		ids = append(ids, row.SupplierID)
	}
	return Ranking{productID: productID, suppliers: ids}
}

func (r Ranking) ProductID() types.ID {
	return r.productID
}

func (r Ranking) Len() int {
	return len(r.suppliers)
}

func (r Ranking) IsEmpty() bool {
	return len(r.suppliers) == 0
}

// Primary returns the supplier at position 1.
func (r Ranking) Primary() (types.ID, bool) {
	if len(r.suppliers) == 0 {
		return 0, false
	}
	return r.suppliers[0], true
}

// Suppliers returns a copy of the ranked supplier ids.
func (r Ranking) Suppliers() []types.ID {
	out := make([]types.ID, len(r.suppliers))
	copy(out, r.suppliers)
	return out
}

func (r Ranking) Contains(supplierID types.ID) bool {
	return r.indexOf(supplierID) >= 0
}

// Position returns the 1-based sort_order of the supplier, or 0 when absent.
func (r Ranking) Position(supplierID types.ID) int {
	return r.indexOf(supplierID) + 1
}

// Append adds the supplier at the end. It reports false when the supplier is
// already ranked, leaving the ranking unchanged.
func (r *Ranking) Append(supplierID types.ID) bool {
	if r.Contains(supplierID) {
		return false
	}
	r.suppliers = append(r.suppliers, supplierID)
	return true
}

// Remove drops the supplier and closes the gap. It reports false when the
// supplier was not ranked.
func (r *Ranking) Remove(supplierID types.ID) bool {
	idx := r.indexOf(supplierID)
	if idx < 0 {
		return false
	}
	r.suppliers = append(r.suppliers[:idx], r.suppliers[idx+1:]...)
	return true
}

// Promote moves the supplier to position 1; the others keep their relative
// order behind it.
func (r *Ranking) Promote(supplierID types.ID) bool {
	idx := r.indexOf(supplierID)
	if idx < 0 {
		return false
	}
	if idx == 0 {
		return true
	}
	copy(r.suppliers[1:idx+1], r.suppliers[:idx])
	r.suppliers[0] = supplierID
	return true
}

// Rows renders the ranking as association rows numbered 1..N.
func (r Ranking) Rows() []models.ProductSupplier {
	rows := make([]models.ProductSupplier, len(r.suppliers))
	for i, supplierID := range r.suppliers {
		rows[i] = models.ProductSupplier{
			ProductID:  r.productID,
			SupplierID: supplierID,
			SortOrder:  i + 1,
		}
	}
	return rows
}

func (r Ranking) indexOf(supplierID types.ID) int {
	for i, id := range r.suppliers {
		if id == supplierID {
			return i
		}
	}
	return -1
}
