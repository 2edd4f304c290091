package requisitions

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/procurebot/procurement-backend/pkg/types"
	"github.com/xuri/excelize/v2"
)

const (
	summarySheet      = "Заявка"
	maxSheetNameRunes = 31
)

var orderHeader = []any{"Товар", "Ед.", "Запрошено", "Итого", "Примечание", "Альтернативы"}

// ExportXLSX renders the requisition detail as a workbook: a summary sheet
// followed by one sheet per supplier order.
func (s *Service) ExportXLSX(ctx context.Context, id types.ID, w io.Writer) error {
	detail, err := s.Detail(ctx, id)
	if err != nil {
		return err
	}
	f, err := renderWorkbook(detail)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func renderWorkbook(detail *Detail) (*excelize.File, error) {
	f := excelize.NewFile()
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, err
	}

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		f.Close()
		return nil, err
	}
	summaryRows := [][]any{
		{"Заявка", detail.ID.String()},
		{"Сотрудник", submitterLabel(detail.Summary)},
		{"Создана", detail.CreatedAt.Format("2006-01-02 15:04")},
		{"Заказов", len(detail.Orders)},
		{},
		{"Поставщик", "Статус", "Позиций"},
	}
	for _, order := range detail.Orders {
		summaryRows = append(summaryRows, []any{order.Supplier.Name, string(order.Status), len(order.Items)})
	}
	if err := writeRows(f, summarySheet, summaryRows); err != nil {
		f.Close()
		return nil, err
	}
	_ = f.SetRowStyle(summarySheet, 6, 6, bold)
	_ = f.SetColWidth(summarySheet, "A", "A", 28)

	used := map[string]struct{}{strings.ToLower(summarySheet): {}}
	for _, order := range detail.Orders {
		name := sheetName(order.Supplier.Name, used)
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, err
		}
		rows := [][]any{orderHeader}
		for _, item := range order.Items {
			note := ""
			if item.Note != nil {
				note = *item.Note
			}
			alts := make([]string, 0, len(item.Alternatives))
			for _, alt := range item.Alternatives {
				alts = append(alts, alt.Name)
			}
			rows = append(rows, []any{
				item.ProductName,
				item.Unit,
				item.QtyRequested.InexactFloat64(),
				item.QtyFinal.InexactFloat64(),
				note,
				strings.Join(alts, ", "),
			})
		}
		if err := writeRows(f, name, rows); err != nil {
			f.Close()
			return nil, err
		}
		_ = f.SetRowStyle(name, 1, 1, bold)
		_ = f.SetColWidth(name, "A", "A", 32)
		_ = f.SetColWidth(name, "E", "F", 28)
	}
	return f, nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := row
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}
	return nil
}

func submitterLabel(summary Summary) string {
	if summary.UserName == "" {
		return summary.UserID
	}
	return fmt.Sprintf("%s (%s)", summary.UserName, summary.UserID)
}

// sheetName makes a supplier name usable as a unique worksheet title.
func sheetName(raw string, used map[string]struct{}) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, strings.TrimSpace(raw))
	cleaned = strings.Trim(cleaned, "'")
	if cleaned == "" {
		cleaned = "Поставщик"
	}
	base := truncateRunes(cleaned, maxSheetNameRunes)
	name := base
	for n := 2; ; n++ {
		if _, taken := used[strings.ToLower(name)]; !taken {
			break
		}
		suffix := fmt.Sprintf(" (%d)", n)
		name = truncateRunes(base, maxSheetNameRunes-len([]rune(suffix))) + suffix
	}
	used[strings.ToLower(name)] = struct{}{}
	return name
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
