package workflow

import (
	"context"
	"fmt"

	"bitbucket.org/domeotech/doors_backend/config"
	"bitbucket.org/domeotech/doors_backend/models"
	"bitbucket.org/domeotech/doors_backend/utils"
)

// CreateDependentDocumentInput creates a document chained to an existing
// parent. Only supplier orders are created this way today; quotes, invoices
// and orders have their own creation paths.
type CreateDependentDocumentInput struct {
	Kind          string                   `json:"kind" binding:"required"`
	ParentId      string                   `json:"parent_id" binding:"required"`
	CartSessionId string                   `json:"cart_session_id"`
	Payload       *models.NewSupplierOrder `json:"payload"`
}

// CreateDependentDocument is idempotent on (parent_id, cart_session_id): a
// repeat call returns the supplier order the first call created. The Redis
// lock narrows the race window; the unique index on the pair is the actual
// guarantee and a losing insert is retried as a read.
func CreateDependentDocument(ctx context.Context, input *CreateDependentDocumentInput) (*models.SupplierOrder, bool, error) {
	kind, err := models.ParseDocumentKind(input.Kind)
	if err != nil {
		return nil, false, utils.NewValidationError("kind", "invalid document kind")
	}
	if kind != models.DocumentKindSupplierOrder {
		return nil, false, utils.NewValidationError("kind", "only supplier orders can be created as dependent documents")
	}

	parent, err := models.ResolveDocument(ctx, input.ParentId)
	if err != nil {
		return nil, false, utils.NewNotFoundError("parent document not found")
	}
	if parent.Kind != models.DocumentKindInvoice && parent.Kind != models.DocumentKindOrder {
		return nil, false, utils.NewValidationError("parent_id", "supplier order parent must be an invoice or an order")
	}

	sessionId := input.CartSessionId
	if sessionId == "" {
		sessionId = parent.CartSessionId
	}
	if sessionId == "" {
		return nil, false, utils.NewValidationError("cart_session_id", "cart session id is required")
	}

	lock, _ := utils.ObtainDocumentLock(ctx, "doclink", parent.ID+":"+sessionId, "linkManager.go", "CreateDependentDocument")
	defer utils.ReleaseDocumentLock(ctx, lock)

	existing, err := models.FindSupplierOrderBySession(ctx, parent.ID, sessionId)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	so := buildSupplierOrder(parent, sessionId, input.Payload)

	if err := models.InsertDependentSupplierOrder(ctx, so, parent); err != nil {
		if models.IsDuplicateSessionError(err) {
			// A concurrent caller won the insert; hand back its row.
			winner, findErr := models.FindSupplierOrderBySession(ctx, parent.ID, sessionId)
			if findErr != nil {
				return nil, false, findErr
			}
			if winner != nil {
				return winner, false, nil
			}
		}
		return nil, false, err
	}

	return so, true, nil
}

// buildSupplierOrder computes the total from cart lines when present and
// non-zero, falling back to the parent's total otherwise.
func buildSupplierOrder(parent *models.DocumentRef, sessionId string, payload *models.NewSupplierOrder) *models.SupplierOrder {
	so := models.SupplierOrder{
		Status:           models.SupplierOrderStatusPending,
		ParentDocumentId: &parent.ID,
		CartSessionId:    sessionId,
	}
	if payload != nil {
		so.SupplierName = payload.SupplierName
		so.CartData = payload.Items
		so.ExpectedAt = payload.ExpectedAt
		so.Notes = payload.Notes
	}
	if parent.Kind == models.DocumentKindOrder {
		so.OrderId = &parent.ID
	}

	total := so.CartData.TotalAmount()
	if total.IsZero() {
		total = parent.TotalAmount
	}
	so.TotalAmount = total
	return &so
}

/* link audit */

type LinkAuditResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// linkPairField names the pointer column each side of a document pair holds
// for the other. The audit and repair logic is the same for every pair, only
// the column names differ.
type linkPairField struct {
	fieldA string
	fieldB string
}

var linkPairs = map[[2]models.DocumentKind]linkPairField{
	{models.DocumentKindOrder, models.DocumentKindInvoice}:       {fieldA: "invoice_id", fieldB: "order_id"},
	{models.DocumentKindOrder, models.DocumentKindQuote}:         {fieldA: "quote_id", fieldB: "order_id"},
	{models.DocumentKindOrder, models.DocumentKindSupplierOrder}: {fieldA: "supplier_order_id", fieldB: "order_id"},
}

// normalizePair orders the arguments so either side can come first.
func normalizePair(kindA models.DocumentKind, idA string, kindB models.DocumentKind, idB string) (models.DocumentKind, string, models.DocumentKind, string, *linkPairField) {
	if pair, ok := linkPairs[[2]models.DocumentKind{kindA, kindB}]; ok {
		return kindA, idA, kindB, idB, &pair
	}
	if pair, ok := linkPairs[[2]models.DocumentKind{kindB, kindA}]; ok {
		return kindB, idB, kindA, idA, &pair
	}
	return kindA, idA, kindB, idB, nil
}

// AuditLinks verifies that two documents' bidirectional pointer fields agree.
// The error strings are operator-facing; an empty list means the link is
// consistent.
func AuditLinks(ctx context.Context, kindA models.DocumentKind, idA string, kindB models.DocumentKind, idB string) (*LinkAuditResult, error) {
	kindA, idA, kindB, idB, pair := normalizePair(kindA, idA, kindB, idB)
	if pair == nil {
		return nil, utils.NewValidationError("kind", fmt.Sprintf("no link is modeled between %s and %s", kindA, kindB))
	}

	if _, err := models.GetDocumentRef(ctx, kindA, idA); err != nil {
		return nil, utils.NewNotFoundError(fmt.Sprintf("%s %s not found", kindA, idA))
	}
	if _, err := models.GetDocumentRef(ctx, kindB, idB); err != nil {
		return nil, utils.NewNotFoundError(fmt.Sprintf("%s %s not found", kindB, idB))
	}

	var auditErrors []string

	pointerAB, err := models.GetLinkField(ctx, kindA, idA, pair.fieldA)
	if err != nil {
		return nil, err
	}
	if pointerAB == nil || *pointerAB == "" {
		auditErrors = append(auditErrors, fmt.Sprintf("%s %s has no %s set", kindA, idA, pair.fieldA))
	} else if *pointerAB != idB {
		auditErrors = append(auditErrors, fmt.Sprintf("%s %s points at %s %s, expected %s", kindA, idA, kindB, *pointerAB, idB))
	}

	pointerBA, err := models.GetLinkField(ctx, kindB, idB, pair.fieldB)
	if err != nil {
		return nil, err
	}
	if pointerBA == nil || *pointerBA == "" {
		auditErrors = append(auditErrors, fmt.Sprintf("%s %s has no %s set", kindB, idB, pair.fieldB))
	} else if *pointerBA != idA {
		auditErrors = append(auditErrors, fmt.Sprintf("%s %s points at %s %s, expected %s", kindB, idB, kindA, *pointerBA, idA))
	}

	return &LinkAuditResult{Valid: len(auditErrors) == 0, Errors: auditErrors}, nil
}

// RepairLink rewrites both sides' pointer fields to agree, last repair wins.
// Operator-invoked remediation only, never called from the hot path.
func RepairLink(ctx context.Context, kindA models.DocumentKind, idA string, kindB models.DocumentKind, idB string) error {
	logger := config.GetLogger()

	kindA, idA, kindB, idB, pair := normalizePair(kindA, idA, kindB, idB)
	if pair == nil {
		return utils.NewValidationError("kind", fmt.Sprintf("no link is modeled between %s and %s", kindA, kindB))
	}

	if _, err := models.GetDocumentRef(ctx, kindA, idA); err != nil {
		return utils.NewNotFoundError(fmt.Sprintf("%s %s not found", kindA, idA))
	}
	if _, err := models.GetDocumentRef(ctx, kindB, idB); err != nil {
		return utils.NewNotFoundError(fmt.Sprintf("%s %s not found", kindB, idB))
	}

	if config.LinkRepairDryRun() {
		config.LogWarn(logger, "linkManager.go", "RepairLink", "dry run", fmt.Sprintf("%s %s <-> %s %s", kindA, idA, kindB, idB), "link repair skipped (LINK_REPAIR_DRY_RUN)")
		return nil
	}

	if err := models.SetLinkField(ctx, kindA, idA, pair.fieldA, idB); err != nil {
		return err
	}
	if err := models.SetLinkField(ctx, kindB, idB, pair.fieldB, idA); err != nil {
		return err
	}

	details := fmt.Sprintf("link repaired: %s.%s = %s, %s.%s = %s", kindA, pair.fieldA, idB, kindB, pair.fieldB, idA)
	if err := models.AppendHistory(ctx, idA, kindA, models.HistoryActionLinkRepair, "", "", details); err != nil {
		config.LogError(logger, "linkManager.go", "RepairLink", "AppendHistory", idA, err)
	}
	return nil
}
