package workflow_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"bitbucket.org/domeotech/doors_backend/config"
	"bitbucket.org/domeotech/doors_backend/models"
	"bitbucket.org/domeotech/doors_backend/utils"
	"bitbucket.org/domeotech/doors_backend/workflow"
	"github.com/shopspring/decimal"
)

// Regression: concurrent checkouts of the same cart session against the same
// parent must converge on exactly one supplier order, and the link pointers
// on both sides must stay consistent through status changes and repair.
func TestDocumentChainLifecycle(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "doors_test")
	t.Setenv("NOTIFICATIONS_DISABLED", "")
	t.Setenv("PUBSUB_STATUS_EVENTS", "")
	t.Setenv("LINK_REPAIR_DRY_RUN", "")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	manager, err := models.CreateUser(ctx, &models.NewUser{
		Name: "Test Manager", Email: "manager@doors.test", Password: "secret-1", Role: models.UserRoleManager,
	})
	if err != nil {
		t.Fatalf("CreateUser manager: %v", err)
	}
	complectator, err := models.CreateUser(ctx, &models.NewUser{
		Name: "Test Complectator", Email: "complectator@doors.test", Password: "secret-2", Role: models.UserRoleComplectator,
	})
	if err != nil {
		t.Fatalf("CreateUser complectator: %v", err)
	}

	ctx = utils.SetUserIdInContext(ctx, manager.ID)
	ctx = utils.SetUserNameInContext(ctx, manager.Name)
	ctx = utils.SetUserRoleInContext(ctx, string(models.UserRoleManager))

	client, err := models.CreateClient(ctx, &models.NewClient{
		Name:       "Иванов И.И.",
		Phone:      "+79161234567",
		LeadNumber: "LEAD-1001",
	})
	if err != nil {
		t.Fatalf("CreateClient: %v", err)
	}

	items := models.CartData{
		{Sku: "D-100", Name: "Дверь Classic", Model: "Classic", Width: 800, Height: 2000, Color: "white", Quantity: 2, UnitPrice: decimal.NewFromInt(12500)},
	}

	quote, err := models.CreateQuote(ctx, &models.NewQuote{ClientId: client.ID, Items: items})
	if err != nil {
		t.Fatalf("CreateQuote: %v", err)
	}
	if !strings.HasPrefix(quote.Number, models.NumberPrefixQuote) {
		t.Fatalf("quote number %q lacks prefix %q", quote.Number, models.NumberPrefixQuote)
	}

	order, err := workflow.ConvertQuoteToOrder(ctx, quote.ID)
	if err != nil {
		t.Fatalf("ConvertQuoteToOrder: %v", err)
	}
	if !strings.HasPrefix(order.Number, models.NumberPrefixOrder) {
		t.Fatalf("order number %q lacks prefix %q", order.Number, models.NumberPrefixOrder)
	}
	if order.QuoteId == nil || *order.QuoteId != quote.ID {
		t.Fatal("order must point back at its quote")
	}
	refreshedQuote, err := models.GetQuote(ctx, quote.ID)
	if err != nil {
		t.Fatalf("GetQuote: %v", err)
	}
	if refreshedQuote.OrderId == nil || *refreshedQuote.OrderId != order.ID {
		t.Fatal("quote must point at the created order")
	}

	// Conversion is idempotent: a retry returns the same order.
	again, err := workflow.ConvertQuoteToOrder(ctx, quote.ID)
	if err != nil {
		t.Fatalf("ConvertQuoteToOrder retry: %v", err)
	}
	if again.ID != order.ID {
		t.Fatalf("retry created a second order: %s vs %s", again.ID, order.ID)
	}

	invoice, err := models.CreateInvoice(ctx, &models.NewInvoice{
		ClientId:         client.ID,
		ParentDocumentId: &order.ID,
	})
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	if invoice.OrderId == nil || *invoice.OrderId != order.ID {
		t.Fatal("invoice must point back at the parent order")
	}
	if !models.EqualCart(invoice.CartData, order.CartData) {
		t.Fatal("invoice must inherit the parent order's cart snapshot")
	}

	// Concurrent dependent-document creation: one supplier order wins.
	sessionId := invoice.CartSessionId
	const workers = 8
	ids := make([]string, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			so, _, err := workflow.CreateDependentDocument(ctx, &workflow.CreateDependentDocumentInput{
				Kind:          string(models.DocumentKindSupplierOrder),
				ParentId:      order.ID,
				CartSessionId: sessionId,
				Payload:       &models.NewSupplierOrder{ParentDocumentId: order.ID, SupplierName: "Фабрика Дверей"},
			})
			if err != nil {
				errs[i] = err
				return
			}
			ids[i] = so.ID
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("worker %d: %v", i, err)
		}
	}
	for i := 1; i < workers; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("workers observed different supplier orders: %s vs %s", ids[0], ids[i])
		}
	}
	var supplierOrderCount int64
	if err := config.GetDB().WithContext(ctx).Table("supplier_orders").
		Where("parent_document_id = ? AND cart_session_id = ?", order.ID, sessionId).
		Count(&supplierOrderCount).Error; err != nil {
		t.Fatalf("count supplier orders: %v", err)
	}
	if supplierOrderCount != 1 {
		t.Fatalf("expected exactly 1 supplier order for the session, got %d", supplierOrderCount)
	}

	// Status guard: review needs the project file first.
	_, err = workflow.ChangeStatus(ctx, &workflow.ChangeStatusInput{
		DocumentId:   order.ID,
		DocumentKind: string(models.DocumentKindOrder),
		TargetStatus: string(models.OrderStatusUnderReview),
	})
	if err == nil {
		t.Fatal("transition to UNDER_REVIEW without a project file must fail")
	}
	if utils.ErrorCode(err) != utils.ErrCodeValidation {
		t.Fatalf("expected VALIDATION error, got %s (%v)", utils.ErrorCode(err), err)
	}

	fileURL := "https://storage.googleapis.com/doors/orders/" + order.ID + "/project.pdf"
	if _, err := models.UpdateOrderDetails(ctx, order.ID, &models.UpdateOrderInput{ProjectFileURL: &fileURL}); err != nil {
		t.Fatalf("UpdateOrderDetails: %v", err)
	}
	ref, err := workflow.ChangeStatus(ctx, &workflow.ChangeStatusInput{
		DocumentId:   order.ID,
		DocumentKind: string(models.DocumentKindOrder),
		TargetStatus: string(models.OrderStatusUnderReview),
	})
	if err != nil {
		t.Fatalf("ChangeStatus to UNDER_REVIEW: %v", err)
	}
	if ref.Status != string(models.OrderStatusUnderReview) {
		t.Fatalf("order status = %s", ref.Status)
	}

	history, err := models.ListHistory(ctx, order.ID)
	if err != nil {
		t.Fatalf("ListHistory: %v", err)
	}
	foundStatusRow := false
	for _, h := range history {
		if h.Action == models.HistoryActionStatusChange && h.NewValue == string(models.OrderStatusUnderReview) {
			foundStatusRow = true
		}
	}
	if !foundStatusRow {
		t.Fatal("status change must append a history row")
	}

	notifications, err := models.ListNotifications(ctx, complectator.ID, false)
	if err != nil {
		t.Fatalf("ListNotifications: %v", err)
	}
	if len(notifications) == 0 {
		t.Fatal("complectator must be notified about UNDER_REVIEW")
	}
	managerInbox, err := models.ListNotifications(ctx, manager.ID, false)
	if err != nil {
		t.Fatalf("ListNotifications: %v", err)
	}
	if len(managerInbox) != 0 {
		t.Fatalf("manager must not be notified about UNDER_REVIEW, got %d rows", len(managerInbox))
	}

	// The chained invoice is frozen: its status follows the order.
	_, err = workflow.ChangeStatus(ctx, &workflow.ChangeStatusInput{
		DocumentId:   invoice.ID,
		DocumentKind: string(models.DocumentKindInvoice),
		TargetStatus: string(models.InvoiceStatusPaid),
	})
	if err == nil || utils.ErrorCode(err) != utils.ErrCodeBlocked {
		t.Fatalf("direct invoice transition must be BLOCKED, got %v", err)
	}

	if _, err := workflow.ChangeStatus(ctx, &workflow.ChangeStatusInput{
		DocumentId:   order.ID,
		DocumentKind: string(models.DocumentKindOrder),
		TargetStatus: string(models.OrderStatusCancelled),
	}); err != nil {
		t.Fatalf("ChangeStatus to CANCELLED: %v", err)
	}
	syncedInvoice, err := models.GetInvoice(ctx, invoice.ID)
	if err != nil {
		t.Fatalf("GetInvoice: %v", err)
	}
	if syncedInvoice.Status != models.InvoiceStatusCancelled {
		t.Fatalf("invoice status after order cancel = %s, want CANCELLED", syncedInvoice.Status)
	}

	// Related documents and the full chain resolve by id alone.
	related, err := workflow.GetRelatedDocuments(ctx, invoice.ID)
	if err != nil {
		t.Fatalf("GetRelatedDocuments: %v", err)
	}
	parentFound := false
	for _, rel := range related.Related {
		if rel.Relation == workflow.RelationParent && rel.Document.ID == order.ID {
			parentFound = true
		}
	}
	if !parentFound {
		t.Fatal("invoice's related parent must be the order")
	}
	chain, err := workflow.GetDocumentChain(ctx, ids[0])
	if err != nil {
		t.Fatalf("GetDocumentChain: %v", err)
	}
	seen := map[string]bool{}
	for _, entry := range chain {
		seen[entry.Document.ID] = true
	}
	for _, id := range []string{quote.ID, order.ID, invoice.ID, ids[0]} {
		if !seen[id] {
			t.Fatalf("chain from the supplier order must include %s", id)
		}
	}

	// Break the order/invoice pair on one side and repair it.
	if err := config.GetDB().WithContext(ctx).Table("orders").
		Where("id = ?", order.ID).Update("invoice_id", nil).Error; err != nil {
		t.Fatalf("break link: %v", err)
	}
	audit, err := workflow.AuditLinks(ctx, models.DocumentKindOrder, order.ID, models.DocumentKindInvoice, invoice.ID)
	if err != nil {
		t.Fatalf("AuditLinks: %v", err)
	}
	if audit.Valid || len(audit.Errors) == 0 {
		t.Fatal("audit must report the half-broken link")
	}
	if err := workflow.RepairLink(ctx, models.DocumentKindOrder, order.ID, models.DocumentKindInvoice, invoice.ID); err != nil {
		t.Fatalf("RepairLink: %v", err)
	}
	repaired, err := workflow.AuditLinks(ctx, models.DocumentKindOrder, order.ID, models.DocumentKindInvoice, invoice.ID)
	if err != nil {
		t.Fatalf("AuditLinks after repair: %v", err)
	}
	if !repaired.Valid {
		t.Fatalf("link still broken after repair: %v", repaired.Errors)
	}

	report, err := workflow.AuditAllLinks(ctx)
	if err != nil {
		t.Fatalf("AuditAllLinks: %v", err)
	}
	if report.ByClass[workflow.ClassificationDangling] != 0 {
		t.Fatalf("no dangling pointers expected, got %d", report.ByClass[workflow.ClassificationDangling])
	}
}

// Orphan matching only ever proposes; it must not write links.
func TestGraphAuditProposesOrphanMatches(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })
	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "doors_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	ctx = utils.SetUserNameInContext(ctx, "Test")

	client, err := models.CreateClient(ctx, &models.NewClient{Name: "Петрова А.С."})
	if err != nil {
		t.Fatalf("CreateClient: %v", err)
	}

	items := models.CartData{
		{Sku: "D-300", Model: "Loft", Quantity: 1, UnitPrice: decimal.NewFromInt(18900)},
	}
	order, err := models.CreateOrder(ctx, &models.NewOrder{ClientId: client.ID, Items: items})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	invoice, err := models.CreateInvoice(ctx, &models.NewInvoice{ClientId: client.ID, Items: items})
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	if invoice.OrderId != nil {
		t.Fatal("invoice created without a parent must stay unlinked")
	}

	report, err := workflow.AuditAllLinks(ctx)
	if err != nil {
		t.Fatalf("AuditAllLinks: %v", err)
	}

	found := false
	for _, p := range report.Proposals {
		if p.OrderId == order.ID && p.InvoiceId == invoice.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an orphan match proposal for order %s and invoice %s, got %+v", order.ID, invoice.ID, report.Proposals)
	}

	// Proposal only: nothing was linked.
	after, err := models.GetInvoice(ctx, invoice.ID)
	if err != nil {
		t.Fatalf("GetInvoice: %v", err)
	}
	if after.OrderId != nil {
		t.Fatal("audit must never write links on its own")
	}
}

func TestStatusChangeSurvivesHistoryFailure(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })
	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "doors_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	ctx = utils.SetUserNameInContext(ctx, "Test")

	client, err := models.CreateClient(ctx, &models.NewClient{Name: "Сидоров П.П."})
	if err != nil {
		t.Fatalf("CreateClient: %v", err)
	}
	items := models.CartData{
		{Sku: "D-400", Model: "Modern", Quantity: 1, UnitPrice: decimal.NewFromInt(9900)},
	}
	quote, err := models.CreateQuote(ctx, &models.NewQuote{ClientId: client.ID, Items: items})
	if err != nil {
		t.Fatalf("CreateQuote: %v", err)
	}

	// The history ledger is an audit aid. With its table gone the append
	// fails, but the transition itself must still go through.
	if err := config.GetDB().Exec("DROP TABLE document_histories").Error; err != nil {
		t.Fatalf("drop history table: %v", err)
	}
	t.Cleanup(func() { models.MigrateTable() })

	if _, err := workflow.ChangeStatus(ctx, &workflow.ChangeStatusInput{
		DocumentId:   quote.ID,
		DocumentKind: string(models.DocumentKindQuote),
		TargetStatus: string(models.QuoteStatusSent),
	}); err != nil {
		t.Fatalf("ChangeStatus with broken history ledger: %v", err)
	}

	after, err := models.GetQuote(ctx, quote.ID)
	if err != nil {
		t.Fatalf("GetQuote: %v", err)
	}
	if after.Status != models.QuoteStatusSent {
		t.Fatalf("quote status = %s, want %s", after.Status, models.QuoteStatusSent)
	}
}

func TestNumberingRecoversFromStaleCounter(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })
	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "doors_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	ctx = utils.SetUserNameInContext(ctx, "Test")

	client, err := models.CreateClient(ctx, &models.NewClient{Name: "Козлова Е.В."})
	if err != nil {
		t.Fatalf("CreateClient: %v", err)
	}
	items := models.CartData{
		{Sku: "D-500", Model: "Neo", Quantity: 1, UnitPrice: decimal.NewFromInt(7500)},
	}

	// Occupy a range of numbers wider than the retry budget.
	for i := 0; i < 60; i++ {
		if _, err := models.CreateOrder(ctx, &models.NewOrder{ClientId: client.ID, Items: items}); err != nil {
			t.Fatalf("CreateOrder #%d: %v", i, err)
		}
	}

	// Wind the counter back, as after a Redis restart from an old snapshot.
	if err := config.SetRedisValue("order_seq", "1", 0); err != nil {
		t.Fatalf("SetRedisValue: %v", err)
	}

	order, err := models.CreateOrder(ctx, &models.NewOrder{ClientId: client.ID, Items: items})
	if err != nil {
		t.Fatalf("CreateOrder with stale counter: %v", err)
	}
	seq, ok := models.ParseSequenceNumber(models.DocumentKindOrder, order.Number)
	if !ok {
		t.Fatalf("order number %q does not parse", order.Number)
	}
	if seq <= 60 {
		t.Fatalf("order number %q collides with the occupied range", order.Number)
	}
}

/* docker helpers */

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("doors-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("doors-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=doors_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
