package controllers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/procurebot/procurement-backend/api/middleware"
	"github.com/procurebot/procurement-backend/api/responses"
	"github.com/procurebot/procurement-backend/api/validators"
	"github.com/procurebot/procurement-backend/internal/requisitions"
	pkgerrors "github.com/procurebot/procurement-backend/pkg/errors"
	"github.com/procurebot/procurement-backend/pkg/logger"
	"github.com/procurebot/procurement-backend/pkg/types"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// RequisitionService submits and reports on requisitions.
type RequisitionService interface {
	Submit(ctx context.Context, input requisitions.SubmitInput) (*requisitions.SubmitResult, error)
	List(ctx context.Context, limit int) ([]requisitions.Summary, error)
	Detail(ctx context.Context, id types.ID) (*requisitions.Detail, error)
	ExportXLSX(ctx context.Context, id types.ID, w io.Writer) error
}

type submitRequisitionRequest struct {
	Items []submitItemRequest `json:"items" validate:"required,min=1,max=500,dive"`
}

type submitItemRequest struct {
	ProductID types.ID        `json:"product_id" validate:"required"`
	Qty       decimal.Decimal `json:"qty"`
}

// SubmitRequisition splits the submitted items into per-supplier orders.
func SubmitRequisition(svc RequisitionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := middleware.PrincipalFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		var payload submitRequisitionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]requisitions.SubmitItem, 0, len(payload.Items))
		for _, item := range payload.Items {
			items = append(items, requisitions.SubmitItem{ProductID: item.ProductID, Qty: item.Qty})
		}

		result, err := svc.Submit(r.Context(), requisitions.SubmitInput{
			UserID: principal.UserID,
			Role:   principal.Role,
			Items:  items,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

func AdminListRequisitions(svc RequisitionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", requisitions.DefaultListLimit, 1, requisitions.DefaultListLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.List(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func AdminRequisitionDetail(svc RequisitionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseIDParam(r, "requisitionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		detail, err := svc.Detail(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, detail)
	}
}

// AdminExportRequisition streams the requisition workbook. The workbook is
// rendered in memory first so failures still produce a JSON error.
func AdminExportRequisition(svc RequisitionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseIDParam(r, "requisitionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var buf bytes.Buffer
		if err := svc.ExportXLSX(r.Context(), id, &buf); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		w.Header().Set("Content-Type", xlsxContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="requisition-%s.xlsx"`, id.String()))
		w.WriteHeader(http.StatusOK)
		if _, err := buf.WriteTo(w); err != nil && logg != nil {
			logg.Error(r.Context(), "export.write_failed", err)
		}
	}
}
