// link-audit scans the whole document graph for broken parent pointers and
// prints a report: orphans (parent id missing), dangling pointers (parent id
// set but the row is gone) and orphan-order/invoice match proposals.
//
// Repairs a single confirmed pair with --repair. Honors LINK_REPAIR_DRY_RUN.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/link-audit
//   go run ./cmd/link-audit --repair --kind-a=order --id-a=<uuid> --kind-b=invoice --id-b=<uuid> --confirm=REPAIR_LINK
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"bitbucket.org/domeotech/doors_backend/config"
	"bitbucket.org/domeotech/doors_backend/models"
	"bitbucket.org/domeotech/doors_backend/utils"
	"bitbucket.org/domeotech/doors_backend/workflow"
)

func main() {
	repair := flag.Bool("repair", false, "Repair one link instead of scanning")
	kindA := flag.String("kind-a", "", "Document kind of the first side (order, invoice, quote, supplier_order)")
	idA := flag.String("id-a", "", "Document id of the first side")
	kindB := flag.String("kind-b", "", "Document kind of the second side")
	idB := flag.String("id-b", "", "Document id of the second side")
	confirm := flag.String("confirm", "", "Type REPAIR_LINK to proceed with --repair")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	config.ConnectRedisWithRetry()

	ctx := utils.SetUserNameInContext(context.Background(), "link-audit")
	ctx = utils.SetIsAdminInContext(ctx, true)

	if *repair {
		runRepair(ctx, *kindA, *idA, *kindB, *idB, *confirm)
		return
	}

	report, err := workflow.AuditAllLinks(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "audit failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Scanned at %s\n", report.ScannedAt.Format("2006-01-02 15:04:05"))
	for kind, count := range report.Counts {
		fmt.Printf("  %s: %d documents\n", kind, count)
	}
	fmt.Printf("Classification: consistent=%d orphan=%d dangling=%d\n",
		report.ByClass[workflow.ClassificationConsistent],
		report.ByClass[workflow.ClassificationOrphan],
		report.ByClass[workflow.ClassificationDangling])

	if len(report.Entries) == 0 {
		fmt.Println("No broken links found.")
	}
	for _, entry := range report.Entries {
		parent := "<none>"
		if entry.ParentDocumentId != nil {
			parent = *entry.ParentDocumentId
		}
		fmt.Printf("  [%s] %s %s (%s) parent=%s\n", entry.Classification, entry.Kind, entry.Number, entry.ID, parent)
	}

	if len(report.Proposals) > 0 {
		fmt.Println("\nOrphan match proposals (NOT applied, confirm each with --repair):")
		for _, p := range report.Proposals {
			fmt.Printf("  order %s (%s) <-> invoice %s (%s): %s\n",
				p.OrderNumber, p.OrderId, p.InvoiceNumber, p.InvoiceId, p.Reason)
		}
	}
}

func runRepair(ctx context.Context, kindA, idA, kindB, idB, confirm string) {
	if kindA == "" || idA == "" || kindB == "" || idB == "" {
		fmt.Fprintln(os.Stderr, "--kind-a, --id-a, --kind-b and --id-b are required with --repair")
		os.Exit(1)
	}
	if !config.LinkRepairDryRun() && strings.TrimSpace(confirm) != "REPAIR_LINK" {
		fmt.Fprintln(os.Stderr, "set --confirm=REPAIR_LINK to proceed (or LINK_REPAIR_DRY_RUN=true for a dry run)")
		os.Exit(1)
	}

	parsedA, err := models.ParseDocumentKind(kindA)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid --kind-a: %v\n", err)
		os.Exit(1)
	}
	parsedB, err := models.ParseDocumentKind(kindB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid --kind-b: %v\n", err)
		os.Exit(1)
	}

	audit, err := workflow.AuditLinks(ctx, parsedA, idA, parsedB, idB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "audit failed: %v\n", err)
		os.Exit(1)
	}
	if audit.Valid {
		fmt.Println("Link is already consistent; nothing to repair.")
		return
	}
	for _, msg := range audit.Errors {
		fmt.Printf("  broken: %s\n", msg)
	}

	if err := workflow.RepairLink(ctx, parsedA, idA, parsedB, idB); err != nil {
		fmt.Fprintf(os.Stderr, "repair failed: %v\n", err)
		os.Exit(1)
	}
	if config.LinkRepairDryRun() {
		fmt.Println("Dry run: repair planned but not written (LINK_REPAIR_DRY_RUN=true)")
		return
	}
	fmt.Println("Link repaired.")
}
