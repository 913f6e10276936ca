package models

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"bitbucket.org/domeotech/doors_backend/config"
	"bitbucket.org/domeotech/doors_backend/utils"
)

// maxNumberAttempts bounds the regenerate-on-collision loop. Exceeding it
// means something is systematically wrong (counter far behind, hostile data)
// and the create fails loudly instead of spinning.
const maxNumberAttempts = 50

var numberPatterns = map[DocumentKind]*regexp.Regexp{
	DocumentKindQuote:         regexp.MustCompile(`^КП-(\d+)$`),
	DocumentKindInvoice:       regexp.MustCompile(`^Счет-(\d+)$`),
	DocumentKindOrder:         regexp.MustCompile(`^Заказ-(\d+)$`),
	DocumentKindSupplierOrder: regexp.MustCompile(`^ЗаказПоставщика-(\d+)$`),
}

// ParseSequenceNumber extracts the trailing integer from a document number.
// Numbers not matching the kind's pattern (legacy imports) yield ok=false.
func ParseSequenceNumber(kind DocumentKind, number string) (int64, bool) {
	pattern, ok := numberPatterns[kind]
	if !ok {
		return 0, false
	}
	m := pattern.FindStringSubmatch(number)
	if m == nil {
		return 0, false
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func FormatDocumentNumber(kind DocumentKind, seq int64) string {
	return fmt.Sprintf("%s%d", kind.NumberPrefix(), seq)
}

func tableNameForKind(kind DocumentKind) string {
	switch kind {
	case DocumentKindQuote:
		return "quotes"
	case DocumentKindInvoice:
		return "invoices"
	case DocumentKindOrder:
		return "orders"
	case DocumentKindSupplierOrder:
		return "supplier_orders"
	}
	return ""
}

// latestSequenceFromDB walks recent numbers of the kind newest-first and
// returns the first one that parses. Non-conforming numbers are skipped so a
// single imported row cannot stall numbering.
func latestSequenceFromDB(kind DocumentKind) func(ctx context.Context) (int64, error) {
	return func(ctx context.Context) (int64, error) {
		db := config.GetDB()
		var numbers []string
		err := db.WithContext(ctx).
			Table(tableNameForKind(kind)).
			Where("number LIKE ?", kind.NumberPrefix()+"%").
			Order("created_at DESC").
			Limit(100).
			Pluck("number", &numbers).Error
		if err != nil {
			return 0, err
		}
		for _, number := range numbers {
			if seq, ok := ParseSequenceNumber(kind, number); ok {
				return seq, nil
			}
		}
		return 0, nil
	}
}

// NextDocumentNumber returns a candidate number for a new document of kind.
// The Redis counter is only a fast path; the unique index on the number
// column is the real guarantee, so callers must retry with the next candidate
// on a duplicate-key insert (see createWithNumber).
func NextDocumentNumber(ctx context.Context, kind DocumentKind) (string, error) {
	seq, err := utils.NextSequence(ctx, string(kind), latestSequenceFromDB(kind))
	if err != nil {
		return "", err
	}
	return FormatDocumentNumber(kind, seq), nil
}

// createWithNumber inserts via create, regenerating the number on each
// duplicate-key conflict up to maxNumberAttempts.
func createWithNumber(ctx context.Context, kind DocumentKind, setNumber func(string), create func() error) error {
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		number, err := NextDocumentNumber(ctx, kind)
		if err != nil {
			return err
		}
		setNumber(number)
		err = create()
		if err == nil {
			return nil
		}
		if !IsDuplicateNumberError(err) {
			return err
		}
		// the candidate came from a stale counter, jump it back to the
		// stored maximum instead of stepping through the occupied range
		if rerr := utils.ResetSequence(string(kind)); rerr != nil {
			config.LogWarn(config.GetLogger(), "sequence.go", "createWithNumber", "ResetSequence", string(kind), rerr.Error())
		}
	}
	return utils.NewConflictError(fmt.Sprintf("could not allocate a unique %s number after %d attempts", kind, maxNumberAttempts))
}

// IsDuplicateNumberError reports a duplicate-key error on the number column
// specifically. gorm names those indexes idx_<table>_number, and the MySQL
// 1062 message carries the violated key name, so conflicts on other unique
// indexes (the supplier order session index) are not retried here.
func IsDuplicateNumberError(err error) bool {
	return IsDuplicateKeyErrorForKey(err, "_number")
}
