package notifications

import (
	"fmt"
	"html"
	"strings"

	"github.com/procurebot/procurement-backend/pkg/outbox/payloads"
)

const timeLayout = "02.01.2006 15:04"

// RenderRequisitionSubmitted lists every supplier order of the split so the
// purchaser can place them.
func RenderRequisitionSubmitted(event payloads.RequisitionSubmittedEvent) Message {
	who := event.UserName
	if who == "" {
		who = event.UserID
	}
	subject := fmt.Sprintf("Заявка #%s: %d заказ(ов)", event.RequisitionID, len(event.Orders))

	var text, markup strings.Builder
	fmt.Fprintf(&text, "Новая заявка #%s от %s (%s)\n", event.RequisitionID, who, event.SubmittedAt.Format(timeLayout))
	fmt.Fprintf(&markup, "<h3>Новая заявка #%s</h3><p>%s, %s</p>",
		event.RequisitionID, html.EscapeString(who), event.SubmittedAt.Format(timeLayout))

	for _, order := range event.Orders {
		fmt.Fprintf(&text, "\n%s", order.SupplierName)
		fmt.Fprintf(&markup, "<h4>%s", html.EscapeString(order.SupplierName))
		if order.SupplierContact != nil && *order.SupplierContact != "" {
			fmt.Fprintf(&text, " (%s)", *order.SupplierContact)
			fmt.Fprintf(&markup, " <small>%s</small>", html.EscapeString(*order.SupplierContact))
		}
		text.WriteString("\n")
		markup.WriteString("</h4><ul>")
		for _, item := range order.Items {
			marker := ""
			if item.Fallback {
				marker = " [замена поставщика]"
			}
			fmt.Fprintf(&text, "  - %s: %s %s%s\n", item.ProductName, item.Qty.String(), item.Unit, marker)
			fmt.Fprintf(&markup, "<li>%s: %s %s%s</li>",
				html.EscapeString(item.ProductName), item.Qty.String(), html.EscapeString(item.Unit), html.EscapeString(marker))
		}
		markup.WriteString("</ul>")
	}
	return Message{Subject: subject, Text: text.String(), HTML: markup.String()}
}

// RenderOrdersDelivered reports a delivery acknowledgement.
func RenderOrdersDelivered(event payloads.SupplierOrdersDeliveredEvent) Message {
	subject := fmt.Sprintf("Поставка от %s принята", event.SupplierName)
	text := fmt.Sprintf("%s: принято заказов %d (%s)", event.SupplierName, len(event.OrderIDs), event.DeliveredAt.Format(timeLayout))
	if event.DeliveredBy != "" {
		text += fmt.Sprintf(", отметил %s", event.DeliveredBy)
	}
	return Message{Subject: subject, Text: text + "\n"}
}
