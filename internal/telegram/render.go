package telegram

import (
	"fmt"
	"strings"

	"github.com/wbfreight/dispatch/internal/domain"
)

// AdminOrderMessage renders the dispatcher-facing summary of a new order.
func AdminOrderMessage(event domain.OrderEvent) string {
	var b strings.Builder

	fmt.Fprintf(&b, "📦 New order #%d\n\n", event.SequenceNumber)
	if event.WarehouseName != "" {
		fmt.Fprintf(&b, "🏭 Warehouse: %s\n", event.WarehouseName)
	}

	cargo := event.Cargo
	if cargo.BoxCount > 0 {
		fmt.Fprintf(&b, "📦 Boxes: %d", cargo.BoxCount)
		if cargo.BoxSize == domain.BoxSizeCustom {
			fmt.Fprintf(&b, " (%sx%sx%s cm)", cargo.Length, cargo.Width, cargo.Height)
		} else if cargo.BoxSize != "" {
			fmt.Fprintf(&b, " (%s cm)", cargo.BoxSize)
		}
		b.WriteString("\n")
	}
	if cargo.PalletCount > 0 {
		fmt.Fprintf(&b, "🟫 Pallets: %d", cargo.PalletCount)
		if cargo.WeightCategory == domain.WeightCategoryCustom {
			fmt.Fprintf(&b, " (%s kg)", cargo.Weight)
		} else if cargo.WeightCategory != "" {
			fmt.Fprintf(&b, " (%s kg)", cargo.WeightCategory)
		}
		b.WriteString("\n")
	}

	if len(event.Services) > 0 {
		b.WriteString("\n🔧 Services:\n")
		for _, svc := range event.Services {
			fmt.Fprintf(&b, "  • %s — %s ₽\n", svc.Name, svc.Price)
		}
	}

	b.WriteString("\n👤 Client\n")
	if event.CompanyName != "" {
		fmt.Fprintf(&b, "Company: %s\n", event.CompanyName)
	}
	fmt.Fprintf(&b, "Name: %s\n", event.ClientName)
	fmt.Fprintf(&b, "Phone: %s\n", event.ClientPhone)
	if event.PickupAddress != "" {
		fmt.Fprintf(&b, "Pickup: %s\n", event.PickupAddress)
	}

	fmt.Fprintf(&b, "\n💰 Total: %s ₽", event.TotalPrice)

	return b.String()
}

// ClientAssignedMessage tells the client who is picking up their cargo.
func ClientAssignedMessage(event domain.OrderEvent) string {
	var b strings.Builder

	fmt.Fprintf(&b, "✅ Your order #%d is confirmed\n\n", event.SequenceNumber)
	fmt.Fprintf(&b, "🚚 Driver: %s\n", event.DriverName)
	if event.DriverPhone != "" {
		fmt.Fprintf(&b, "📞 Phone: %s\n", event.DriverPhone)
	}
	if event.TruckInfo != "" {
		fmt.Fprintf(&b, "🚛 Truck: %s\n", event.TruckInfo)
	}
	b.WriteString("\nThe driver will contact you before arrival.")

	return b.String()
}

// ClientRejectedMessage tells the client their order was declined.
func ClientRejectedMessage(event domain.OrderEvent) string {
	var b strings.Builder

	fmt.Fprintf(&b, "❌ Your order #%d was declined.\n", event.SequenceNumber)
	if event.RejectReason != "" {
		fmt.Fprintf(&b, "\nReason: %s\n", event.RejectReason)
	}
	b.WriteString("\nContact the dispatcher if you have questions.")

	return b.String()
}
