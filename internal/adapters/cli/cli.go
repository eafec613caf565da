package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"stockdesk/internal/app"
	"stockdesk/internal/core"
)

// Run executes a one-shot CLI command and exits.
// args is os.Args[1:] — the first element is the subcommand name.
func Run(ctx context.Context, svc app.ApplicationService, args []string) {
	switch args[0] {
	case "stock", "s":
		products, err := svc.ListProducts(ctx, true)
		if err != nil {
			log.Fatalf("Failed to list products: %v", err)
		}
		printStock(products)

	case "low-stock", "low":
		products, err := svc.LowStock(ctx)
		if err != nil {
			log.Fatalf("Failed to list low stock: %v", err)
		}
		if len(products) == 0 {
			fmt.Println("No products at or below their reorder point.")
			return
		}
		printStock(products)

	case "order", "o":
		if len(args) < 2 {
			log.Fatal("Usage: app order <order-id>")
		}
		id := mustID(args[1])
		order, err := svc.GetOrder(ctx, id)
		if err != nil {
			log.Fatalf("Failed to load order: %v", err)
		}
		status, err := svc.OrderPaymentStatus(ctx, id)
		if err != nil {
			log.Fatalf("Failed to load payment status: %v", err)
		}
		printOrder(order, status)

	case "propose", "prop", "p":
		if len(args) < 2 {
			log.Fatal("Usage: app propose \"<request>\"")
		}
		result, err := svc.InterpretRequest(ctx, app.AssistantRequest{Text: args[1]})
		if err != nil {
			log.Fatalf("Agent error: %v", err)
		}
		if result.IsClarification {
			fmt.Fprintln(os.Stderr, "Assistant needs clarification:", result.ClarificationMessage)
			os.Exit(1)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result.Proposal)

	case "execute", "exec", "x":
		var proposal core.ActionProposal
		if err := json.NewDecoder(os.Stdin).Decode(&proposal); err != nil {
			log.Fatalf("Invalid JSON: %v", err)
		}
		result, err := svc.ExecuteProposal(ctx, proposal)
		if err != nil {
			log.Fatalf("Execution failed: %v", err)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)

	case "reconcile", "rec":
		report, err := svc.Reconcile(ctx)
		if err != nil {
			log.Fatalf("Reconciliation failed: %v", err)
		}
		printReconcile(report)

	default:
		log.Fatalf("Unknown command: %s\nAvailable: stock, low-stock, order, propose, execute, reconcile", args[0])
	}
}

func mustID(raw string) int {
	var id int
	if _, err := fmt.Sscanf(raw, "%d", &id); err != nil || id <= 0 {
		log.Fatalf("Invalid id: %s", raw)
	}
	return id
}

func printStock(products []core.Product) {
	fmt.Println()
	fmt.Println(strings.Repeat("=", 66))
	fmt.Printf("  %-62s\n", "STOCK LEVELS")
	fmt.Println(strings.Repeat("=", 66))
	fmt.Printf("  %-5s %-34s %10s %12s\n", "ID", "PRODUCT", "PRICE", "ON HAND")
	fmt.Println(strings.Repeat("-", 66))
	for _, p := range products {
		marker := ""
		if p.Quantity <= p.ReorderPoint {
			marker = " *"
		}
		fmt.Printf("  %-5d %-34s %10s %10d%s\n", p.ID, p.Name, p.UnitPrice.StringFixed(2), p.Quantity, marker)
	}
	fmt.Println(strings.Repeat("=", 66))
	fmt.Println("  * at or below reorder point")
}

func printOrder(order *core.Order, status *core.OrderPaymentStatus) {
	fmt.Println()
	fmt.Println(strings.Repeat("=", 66))
	fmt.Printf("  ORDER %s\n", order.OrderNumber)
	fmt.Printf("  Date     : %s\n", order.OrdDate)
	fmt.Printf("  Customer : %s\n", order.CustomerName)
	fmt.Println(strings.Repeat("-", 66))
	for _, line := range order.Lines {
		fmt.Printf("  %-40s %5d x %10s\n", line.ProductName, line.Qty, line.UnitPrice.StringFixed(2))
	}
	fmt.Println(strings.Repeat("-", 66))
	fmt.Printf("  Total     : %s\n", order.Total.StringFixed(2))
	fmt.Printf("  Paid      : %s (%d payment(s))\n", status.TotalPaid.StringFixed(2), status.PaymentsCount)
	fmt.Printf("  Remaining : %s\n", status.Remaining.StringFixed(2))
	fmt.Println(strings.Repeat("=", 66))
}

func printReconcile(report *core.ReconcileReport) {
	fmt.Printf("Checked %d order(s): deleted %d payment(s), shrunk %d payment(s).\n",
		report.OrdersChecked, report.DeletedPayments, report.ShrunkPayments)
	for _, note := range report.Notes {
		fmt.Println("  -", note)
	}
}
