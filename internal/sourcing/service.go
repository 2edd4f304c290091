package sourcing

import (
	"context"
	"fmt"

	pkgerrors "github.com/procurebot/procurement-backend/pkg/errors"
	"github.com/procurebot/procurement-backend/pkg/logger"
	"github.com/procurebot/procurement-backend/pkg/types"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ResolvedSupplier is the supplier chosen to receive a product's order line.
type ResolvedSupplier struct {
	ID          types.ID
	Name        string
	ContactNote *string
	// Fallback is true when the ranked primary was inactive and a lower
	// ranked supplier was chosen instead.
	Fallback bool
}

// Service owns the primary/alternative supplier model.
type Service struct {
	tx   txRunner
	repo Repository
	logg *logger.Logger
}

// NewService builds the supplier resolver.
func NewService(tx txRunner, repo Repository, logg *logger.Logger) (*Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("sourcing repository required")
	}
	return &Service{tx: tx, repo: repo, logg: logg}, nil
}

// Attach ranks the supplier last for the product. Attaching an already
// ranked supplier is a no-op.
func (s *Service) Attach(ctx context.Context, productID, supplierID types.ID) ([]RankedSupplier, error) {
	return s.mutate(ctx, productID, func(tx *gorm.DB) error {
		return s.AttachTx(ctx, tx, productID, supplierID)
	})
}

// AttachTx is Attach inside a caller-owned transaction.
func (s *Service) AttachTx(ctx context.Context, tx *gorm.DB, productID, supplierID types.ID) error {
	repo := s.repo.WithTx(tx)
	if err := s.requireProduct(ctx, repo, productID); err != nil {
		return err
	}
	ok, err := repo.SupplierExists(ctx, supplierID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check supplier")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "supplier not found").
			WithDetails(map[string]any{"supplier_id": supplierID})
	}

	ranking, err := repo.LoadRanking(ctx, productID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ranking")
	}
	if !ranking.Append(supplierID) {
		return nil
	}
	if err := repo.SaveRanking(ctx, ranking); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save ranking")
	}
	return nil
}

// Detach removes the association and renumbers the rest. Detaching a
// supplier that is not ranked is a no-op.
func (s *Service) Detach(ctx context.Context, productID, supplierID types.ID) ([]RankedSupplier, error) {
	return s.mutate(ctx, productID, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := s.requireProduct(ctx, repo, productID); err != nil {
			return err
		}
		ranking, err := repo.LoadRanking(ctx, productID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ranking")
		}
		if !ranking.Remove(supplierID) {
			return nil
		}
		if err := repo.SaveRanking(ctx, ranking); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save ranking")
		}
		return nil
	})
}

// SetPrimary moves an already ranked supplier to position 1.
func (s *Service) SetPrimary(ctx context.Context, productID, supplierID types.ID) ([]RankedSupplier, error) {
	return s.mutate(ctx, productID, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := s.requireProduct(ctx, repo, productID); err != nil {
			return err
		}
		ranking, err := repo.LoadRanking(ctx, productID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ranking")
		}
		if !ranking.Promote(supplierID) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "supplier is not attached to product").
				WithDetails(map[string]any{"product_id": productID, "supplier_id": supplierID})
		}
		if err := repo.SaveRanking(ctx, ranking); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save ranking")
		}
		return nil
	})
}

// ListSuppliers returns the product's suppliers, primary first.
func (s *Service) ListSuppliers(ctx context.Context, productID types.ID) ([]RankedSupplier, error) {
	if err := s.requireProduct(ctx, s.repo, productID); err != nil {
		return nil, err
	}
	ranked, err := s.repo.ListRanked(ctx, []types.ID{productID})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list suppliers")
	}
	list := ranked[productID]
	if list == nil {
		list = []RankedSupplier{}
	}
	return list, nil
}

// ListRankedTx returns rankings for several products using the caller's
// transaction, or the base connection when tx is nil.
func (s *Service) ListRankedTx(ctx context.Context, tx *gorm.DB, productIDs []types.ID) (map[types.ID][]RankedSupplier, error) {
	ranked, err := s.repo.WithTx(tx).ListRanked(ctx, productIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list rankings")
	}
	return ranked, nil
}

// ResolvePrimarySupplier returns the supplier that receives new orders for
// the product.
func (s *Service) ResolvePrimarySupplier(ctx context.Context, productID types.ID) (*ResolvedSupplier, error) {
	return s.ResolvePrimary(ctx, nil, productID)
}

// ResolvePrimary walks the ranking in order and returns the first active
// supplier. Inactive suppliers are skipped; a product without any active
// supplier cannot be ordered.
func (s *Service) ResolvePrimary(ctx context.Context, tx *gorm.DB, productID types.ID) (*ResolvedSupplier, error) {
	repo := s.repo.WithTx(tx)
	if err := s.requireProduct(ctx, repo, productID); err != nil {
		return nil, err
	}
	ranked, err := repo.ListRanked(ctx, []types.ID{productID})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ranking")
	}
	list := ranked[productID]
	if len(list) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeIntegrity, "product has no supplier").
			WithDetails(map[string]any{"product_id": productID})
	}
	for i, candidate := range list {
		if !candidate.Active {
			continue
		}
		if i > 0 && s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"product_id":  productID,
				"supplier_id": candidate.SupplierID,
				"rank":        candidate.SortOrder,
			})
			s.logg.Warn(logCtx, "primary supplier inactive, using alternative")
		}
		return &ResolvedSupplier{
			ID:          candidate.SupplierID,
			Name:        candidate.Name,
			ContactNote: candidate.ContactNote,
			Fallback:    i > 0,
		}, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeIntegrity, "product has no active supplier").
		WithDetails(map[string]any{"product_id": productID})
}

// RemoveSupplierTx drops the supplier from every ranking it appears in and
// renumbers those rankings. It returns the products that are left without
// any supplier.
func (s *Service) RemoveSupplierTx(ctx context.Context, tx *gorm.DB, supplierID types.ID) ([]types.ID, error) {
	repo := s.repo.WithTx(tx)
	productIDs, err := repo.ProductIDsForSupplier(ctx, supplierID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list supplier products")
	}
	var orphaned []types.ID
	for _, productID := range productIDs {
		ranking, err := repo.LoadRanking(ctx, productID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ranking")
		}
		ranking.Remove(supplierID)
		if err := repo.SaveRanking(ctx, ranking); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save ranking")
		}
		if ranking.IsEmpty() {
			orphaned = append(orphaned, productID)
		}
	}
	return orphaned, nil
}

func (s *Service) mutate(ctx context.Context, productID types.ID, fn func(tx *gorm.DB) error) ([]RankedSupplier, error) {
	var result []RankedSupplier
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := fn(tx); err != nil {
			return err
		}
		ranked, err := s.repo.WithTx(tx).ListRanked(ctx, []types.ID{productID})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list suppliers")
		}
		result = ranked[productID]
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		result = []RankedSupplier{}
	}
	return result, nil
}

func (s *Service) requireProduct(ctx context.Context, repo Repository, productID types.ID) error {
	ok, err := repo.ProductExists(ctx, productID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check product")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
			WithDetails(map[string]any{"product_id": productID})
	}
	return nil
}
