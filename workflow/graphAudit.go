package workflow

import (
	"context"
	"time"

	"bitbucket.org/domeotech/doors_backend/models"
)

// orphanMatchWindow bounds the timestamp distance when proposing a match
// between an orphaned order and an unlinked invoice.
const orphanMatchWindow = 30 * time.Minute

type DocumentClassification string

const (
	ClassificationConsistent DocumentClassification = "consistent"
	ClassificationOrphan     DocumentClassification = "orphan"
	ClassificationDangling   DocumentClassification = "dangling"
)

type GraphAuditEntry struct {
	Kind             models.DocumentKind    `json:"kind"`
	ID               string                 `json:"id"`
	Number           string                 `json:"number"`
	ParentDocumentId *string                `json:"parent_document_id"`
	Classification   DocumentClassification `json:"classification"`
}

// OrphanMatchProposal suggests an unlinked invoice for an orphaned order.
// Proposals are never auto-applied; an operator confirms and calls
// RepairLink.
type OrphanMatchProposal struct {
	OrderId       string `json:"order_id"`
	OrderNumber   string `json:"order_number"`
	InvoiceId     string `json:"invoice_id"`
	InvoiceNumber string `json:"invoice_number"`
	Reason        string `json:"reason"`
}

type GraphAuditReport struct {
	Counts    map[models.DocumentKind]int64               `json:"counts"`
	ByClass   map[DocumentClassification]int              `json:"by_class"`
	Entries   []GraphAuditEntry                           `json:"entries"`
	Proposals []OrphanMatchProposal                       `json:"proposals"`
	ScannedAt time.Time                                   `json:"scanned_at"`
}

// AuditAllLinks walks every document of every kind and classifies its parent
// pointer: consistent (resolves), orphan (unset), dangling (set but
// unresolvable). Read-only; safe to run alongside normal traffic.
func AuditAllLinks(ctx context.Context) (*GraphAuditReport, error) {
	report := &GraphAuditReport{
		Counts:    map[models.DocumentKind]int64{},
		ByClass:   map[DocumentClassification]int{},
		ScannedAt: time.Now(),
	}

	var orphanOrders []*models.DocumentRef

	for _, kind := range models.ProbeOrder {
		count, err := models.CountDocuments(ctx, kind)
		if err != nil {
			return nil, err
		}
		report.Counts[kind] = count

		refs, err := models.ListAllRefs(ctx, kind)
		if err != nil {
			return nil, err
		}
		for _, ref := range refs {
			classification := classifyParentPointer(ctx, ref)
			report.ByClass[classification]++
			// Consistent documents are summarized, not listed; the report
			// stays readable on large datasets.
			if classification != ClassificationConsistent {
				report.Entries = append(report.Entries, GraphAuditEntry{
					Kind:             ref.Kind,
					ID:               ref.ID,
					Number:           ref.Number,
					ParentDocumentId: ref.ParentDocumentId,
					Classification:   classification,
				})
			}
			if classification == ClassificationOrphan && ref.Kind == models.DocumentKindOrder {
				orphanOrders = append(orphanOrders, ref)
			}
		}
	}

	proposals, err := proposeOrphanMatches(ctx, orphanOrders)
	if err != nil {
		return nil, err
	}
	report.Proposals = proposals

	return report, nil
}

func classifyParentPointer(ctx context.Context, ref *models.DocumentRef) DocumentClassification {
	if ref.ParentDocumentId == nil || *ref.ParentDocumentId == "" {
		return ClassificationOrphan
	}
	if _, err := models.ResolveDocument(ctx, *ref.ParentDocumentId); err != nil {
		return ClassificationDangling
	}
	return ClassificationConsistent
}

// proposeOrphanMatches pairs each orphaned order with the nearest unlinked
// invoice created within the window and carrying the same total. Best-effort
// heuristic, surfaced as a suggestion only.
func proposeOrphanMatches(ctx context.Context, orphanOrders []*models.DocumentRef) ([]OrphanMatchProposal, error) {
	if len(orphanOrders) == 0 {
		return nil, nil
	}

	invoices, err := models.FindUnlinkedInvoices(ctx)
	if err != nil {
		return nil, err
	}
	if len(invoices) == 0 {
		return nil, nil
	}

	claimed := map[string]bool{}
	var proposals []OrphanMatchProposal
	for _, order := range orphanOrders {
		var best *models.Invoice
		var bestDistance time.Duration
		for _, invoice := range invoices {
			if claimed[invoice.ID] {
				continue
			}
			if !invoice.TotalAmount.Equal(order.TotalAmount) {
				continue
			}
			distance := invoice.CreatedAt.Sub(order.CreatedAt)
			if distance < 0 {
				distance = -distance
			}
			if distance > orphanMatchWindow {
				continue
			}
			if best == nil || distance < bestDistance {
				best = invoice
				bestDistance = distance
			}
		}
		if best != nil {
			claimed[best.ID] = true
			proposals = append(proposals, OrphanMatchProposal{
				OrderId:       order.ID,
				OrderNumber:   order.Number,
				InvoiceId:     best.ID,
				InvoiceNumber: best.Number,
				Reason:        "equal total amount, created within 30 minutes",
			})
		}
	}
	return proposals, nil
}
