package workflow

import (
	"context"

	"bitbucket.org/domeotech/doors_backend/models"
	"bitbucket.org/domeotech/doors_backend/utils"
)

type DocumentRelation string

const (
	RelationParent DocumentRelation = "parent"
	RelationChild  DocumentRelation = "child"
)

type RelatedDocument struct {
	Relation DocumentRelation    `json:"relation"`
	Document *models.DocumentRef `json:"document"`
}

type RelatedDocumentsResult struct {
	Document *models.DocumentRef          `json:"document"`
	Related  []RelatedDocument            `json:"related"`
	Counts   map[models.DocumentKind]int  `json:"counts"`
}

// GetRelatedDocuments resolves an opaque id to its kind, then collects its
// parents and children with a relation label. The caller never needs to know
// the kind up front.
func GetRelatedDocuments(ctx context.Context, id string) (*RelatedDocumentsResult, error) {
	ref, err := models.ResolveDocument(ctx, id)
	if err != nil {
		return nil, utils.NewNotFoundError("document not found")
	}

	result := &RelatedDocumentsResult{
		Document: ref,
		Counts:   map[models.DocumentKind]int{},
	}

	appendRelated := func(relation DocumentRelation, refs ...*models.DocumentRef) {
		for _, r := range refs {
			if r == nil {
				continue
			}
			result.Related = append(result.Related, RelatedDocument{Relation: relation, Document: r})
			result.Counts[r.Kind]++
		}
	}

	switch ref.Kind {
	case models.DocumentKindQuote:
		invoices, err := models.ListRefsByParent(ctx, models.DocumentKindInvoice, ref.ID)
		if err != nil {
			return nil, err
		}
		orders, err := models.ListRefsByParent(ctx, models.DocumentKindOrder, ref.ID)
		if err != nil {
			return nil, err
		}
		appendRelated(RelationChild, invoices...)
		appendRelated(RelationChild, orders...)

	case models.DocumentKindInvoice:
		if parent := resolveParent(ctx, ref); parent != nil {
			appendRelated(RelationParent, parent)
		}
		orders, err := models.ListRefsByParent(ctx, models.DocumentKindOrder, ref.ID)
		if err != nil {
			return nil, err
		}
		appendRelated(RelationChild, orders...)
		supplierOrders, err := models.ListRefsByParent(ctx, models.DocumentKindSupplierOrder, ref.ID)
		if err != nil {
			return nil, err
		}
		appendRelated(RelationChild, supplierOrders...)

	case models.DocumentKindOrder:
		if parent := resolveParent(ctx, ref); parent != nil {
			appendRelated(RelationParent, parent)
		}
		supplierOrders, err := models.ListRefsByParent(ctx, models.DocumentKindSupplierOrder, ref.ID)
		if err != nil {
			return nil, err
		}
		appendRelated(RelationChild, supplierOrders...)

	case models.DocumentKindSupplierOrder:
		if parent := resolveParent(ctx, ref); parent != nil {
			appendRelated(RelationParent, parent)
		}
	}

	return result, nil
}

func resolveParent(ctx context.Context, ref *models.DocumentRef) *models.DocumentRef {
	if ref.ParentDocumentId == nil || *ref.ParentDocumentId == "" {
		return nil
	}
	parent, err := models.ResolveDocument(ctx, *ref.ParentDocumentId)
	if err != nil {
		// Dangling pointers are the audit's business, not the resolver's.
		return nil
	}
	return parent
}

type ChainEntry struct {
	Depth    int                 `json:"depth"`
	Document *models.DocumentRef `json:"document"`
}

// GetDocumentChain walks to the root via parent pointers, then descends back
// through children, returning the chain in order with the root at depth 0.
func GetDocumentChain(ctx context.Context, id string) ([]ChainEntry, error) {
	ref, err := models.ResolveDocument(ctx, id)
	if err != nil {
		return nil, utils.NewNotFoundError("document not found")
	}

	// Walk up. The chain is acyclic by construction; the visit set guards
	// against corrupted data looping forever.
	root := ref
	visited := map[string]bool{ref.ID: true}
	for root.ParentDocumentId != nil && *root.ParentDocumentId != "" {
		parent, err := models.ResolveDocument(ctx, *root.ParentDocumentId)
		if err != nil {
			break
		}
		if visited[parent.ID] {
			break
		}
		visited[parent.ID] = true
		root = parent
	}

	// Walk down breadth-first from the root.
	var chain []ChainEntry
	type frame struct {
		ref   *models.DocumentRef
		depth int
	}
	queue := []frame{{ref: root, depth: 0}}
	seen := map[string]bool{root.ID: true}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		chain = append(chain, ChainEntry{Depth: current.depth, Document: current.ref})

		for _, kind := range models.ProbeOrder {
			children, err := models.ListRefsByParent(ctx, kind, current.ref.ID)
			if err != nil {
				return nil, err
			}
			for _, child := range children {
				if seen[child.ID] {
					continue
				}
				seen[child.ID] = true
				queue = append(queue, frame{ref: child, depth: current.depth + 1})
			}
		}
	}

	return chain, nil
}
