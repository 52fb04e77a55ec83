package steps

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/cucumber/godog"
	"gorm.io/gorm"

	"github.com/retailcore/noos-go/internal/adapters/artifacts"
	"github.com/retailcore/noos-go/internal/adapters/persistence"
	"github.com/retailcore/noos-go/internal/application/ingest"
	domainIngest "github.com/retailcore/noos-go/internal/domain/ingest"
	"github.com/retailcore/noos-go/internal/domain/shared"
	"github.com/retailcore/noos-go/internal/domain/task"
	"github.com/retailcore/noos-go/internal/infrastructure/database"
)

// ingestionContext holds state for TSV upload BDD tests
type ingestionContext struct {
	db           *gorm.DB
	handler      *ingest.UploadHandler
	styles       *persistence.StyleRepositoryGORM
	stores       *persistence.StoreRepositoryGORM
	skus         *persistence.SKURepositoryGORM
	sales        *persistence.SaleRepositoryGORM
	artifactsDir string

	// Outcome of the last upload
	result    *task.ExecutionResult
	uploadErr error
}

func (ctx *ingestionContext) reset() {
	if ctx.db != nil {
		_ = database.Close(ctx.db)
	}
	if ctx.artifactsDir != "" {
		os.RemoveAll(ctx.artifactsDir)
	}

	db, err := database.NewTestConnection()
	if err != nil {
		panic(fmt.Sprintf("failed to open test database: %v", err))
	}
	dir, err := os.MkdirTemp("", "noos-bdd-artifacts-")
	if err != nil {
		panic(fmt.Sprintf("failed to create artifacts dir: %v", err))
	}
	store, err := artifacts.NewStore(dir)
	if err != nil {
		panic(fmt.Sprintf("failed to create artifact store: %v", err))
	}

	ctx.db = db
	ctx.artifactsDir = dir
	ctx.styles = persistence.NewStyleRepository(db)
	ctx.stores = persistence.NewStoreRepository(db)
	ctx.skus = persistence.NewSKURepository(db)
	ctx.sales = persistence.NewSaleRepository(db)
	ctx.handler = ingest.NewUploadHandler(ctx.styles, ctx.stores, ctx.skus,
		persistence.NewBatchWriter(db), store)
	ctx.result = nil
	ctx.uploadErr = nil
}

// InitializeIngestionScenario registers step definitions
func InitializeIngestionScenario(sc *godog.ScenarioContext) {
	sCtx := &ingestionContext{}

	// Given steps
	sc.Step(`^the master tables are empty$`, sCtx.theMasterTablesAreEmpty)
	sc.Step(`^the following styles are already loaded:$`, sCtx.theFollowingStylesAreAlreadyLoaded)
	sc.Step(`^the following stores are already loaded:$`, sCtx.theFollowingStoresAreAlreadyLoaded)
	sc.Step(`^the following SKUs are already loaded:$`, sCtx.theFollowingSKUsAreAlreadyLoaded)

	// When steps
	sc.Step(`^a (styles|stores|skus|sales) file named "([^"]*)" is uploaded with rows:$`, sCtx.aFileIsUploadedWithRows)
	sc.Step(`^an empty (styles|stores|skus|sales) file named "([^"]*)" is uploaded$`, sCtx.anEmptyFileIsUploaded)
	sc.Step(`^a (styles|stores|skus|sales) file named "([^"]*)" with header "([^"]*)" is uploaded$`, sCtx.aFileWithHeaderIsUploaded)

	// Then steps
	sc.Step(`^the upload succeeds with (\d+) records? loaded$`, sCtx.theUploadSucceedsWithRecordsLoaded)
	sc.Step(`^the upload is rejected as a validation failure$`, sCtx.theUploadIsRejectedAsAValidationFailure)
	sc.Step(`^the rejection message is "([^"]*)"$`, sCtx.theRejectionMessageIs)
	sc.Step(`^the rejection message mentions "([^"]*)"$`, sCtx.theRejectionMessageMentions)
	sc.Step(`^the (styles|stores|skus|sales) table (?:still )?holds (\d+) rows?$`, sCtx.theTableHoldsRows)
	sc.Step(`^(\d+) rows? (?:is|are) skipped$`, sCtx.rowsAreSkipped)
	sc.Step(`^a "([^"]*)" report artifact is saved$`, sCtx.aReportArtifactIsSaved)
	sc.Step(`^no report artifacts are saved$`, sCtx.noReportArtifactsAreSaved)
	sc.Step(`^the style "([^"]*)" is stored with brand "([^"]*)"$`, sCtx.theStyleIsStoredWithBrand)

	// Hooks
	sc.Before(func(gCtx context.Context, sc *godog.Scenario) (context.Context, error) {
		sCtx.reset()
		return gCtx, nil
	})
}

// tsvFromTable renders a Gherkin table, header row included, as TSV bytes
func tsvFromTable(table *godog.Table) []byte {
	var sb strings.Builder
	for _, row := range table.Rows {
		cells := make([]string, len(row.Cells))
		for i, cell := range row.Cells {
			cells[i] = cell.Value
		}
		sb.WriteString(strings.Join(cells, "\t"))
		sb.WriteString("\n")
	}
	return []byte(sb.String())
}

// upload runs the handler in-process, the way the task engine invokes it,
// and records the outcome for the Then steps
func (ctx *ingestionContext) upload(kind domainIngest.Kind, fileName string, payload []byte) {
	resp, err := ctx.handler.Handle(context.Background(), &ingest.UploadCommand{
		TaskID:   "bdd-" + string(kind),
		Kind:     kind,
		FileName: fileName,
		Payload:  payload,
	})
	ctx.uploadErr = err
	ctx.result = nil
	if resp != nil {
		if result, ok := resp.(*task.ExecutionResult); ok {
			ctx.result = result
		}
	}
}

func (ctx *ingestionContext) seed(kind domainIngest.Kind, fileName string, table *godog.Table) error {
	ctx.upload(kind, fileName, tsvFromTable(table))
	if ctx.uploadErr != nil {
		return fmt.Errorf("seeding %s failed: %w", kind, ctx.uploadErr)
	}
	return nil
}

func (ctx *ingestionContext) tableCount(kind domainIngest.Kind) (int64, error) {
	bg := context.Background()
	switch kind {
	case domainIngest.KindStyles:
		return ctx.styles.Count(bg)
	case domainIngest.KindStores:
		return ctx.stores.Count(bg)
	case domainIngest.KindSkus:
		return ctx.skus.Count(bg)
	case domainIngest.KindSales:
		return ctx.sales.Count(bg)
	}
	return 0, fmt.Errorf("unknown table %q", kind)
}

// ============================================================================
// Given Steps
// ============================================================================

func (ctx *ingestionContext) theMasterTablesAreEmpty() error {
	for _, kind := range []domainIngest.Kind{domainIngest.KindStyles, domainIngest.KindStores, domainIngest.KindSkus} {
		count, err := ctx.tableCount(kind)
		if err != nil {
			return err
		}
		if count != 0 {
			return fmt.Errorf("expected empty %s table, found %d rows", kind, count)
		}
	}
	return nil
}

func (ctx *ingestionContext) theFollowingStylesAreAlreadyLoaded(table *godog.Table) error {
	return ctx.seed(domainIngest.KindStyles, "styles.tsv", table)
}

func (ctx *ingestionContext) theFollowingStoresAreAlreadyLoaded(table *godog.Table) error {
	return ctx.seed(domainIngest.KindStores, "stores.tsv", table)
}

func (ctx *ingestionContext) theFollowingSKUsAreAlreadyLoaded(table *godog.Table) error {
	return ctx.seed(domainIngest.KindSkus, "skus.tsv", table)
}

// ============================================================================
// When Steps
// ============================================================================

func (ctx *ingestionContext) aFileIsUploadedWithRows(kind, fileName string, table *godog.Table) error {
	ctx.upload(domainIngest.Kind(kind), fileName, tsvFromTable(table))
	return nil
}

func (ctx *ingestionContext) anEmptyFileIsUploaded(kind, fileName string) error {
	ctx.upload(domainIngest.Kind(kind), fileName, []byte{})
	return nil
}

func (ctx *ingestionContext) aFileWithHeaderIsUploaded(kind, fileName, header string) error {
	ctx.upload(domainIngest.Kind(kind), fileName, []byte(header+"\n"))
	return nil
}

// ============================================================================
// Then Steps
// ============================================================================

func (ctx *ingestionContext) theUploadSucceedsWithRecordsLoaded(count int) error {
	if ctx.uploadErr != nil {
		return fmt.Errorf("expected upload to succeed, got: %v", ctx.uploadErr)
	}
	if ctx.result == nil {
		return fmt.Errorf("no execution result recorded")
	}
	if ctx.result.ProcessedRecords != count {
		return fmt.Errorf("expected %d records loaded, got %d", count, ctx.result.ProcessedRecords)
	}
	return nil
}

func (ctx *ingestionContext) theUploadIsRejectedAsAValidationFailure() error {
	if ctx.uploadErr == nil {
		return fmt.Errorf("expected a validation failure, upload succeeded")
	}
	if !shared.IsKind(ctx.uploadErr, shared.KindValidation) {
		return fmt.Errorf("expected VALIDATION error, got: %v", ctx.uploadErr)
	}
	return nil
}

func (ctx *ingestionContext) theRejectionMessageIs(message string) error {
	if ctx.uploadErr == nil {
		return fmt.Errorf("no upload error recorded")
	}
	if ctx.uploadErr.Error() != message {
		return fmt.Errorf("expected rejection message %q, got %q", message, ctx.uploadErr.Error())
	}
	return nil
}

func (ctx *ingestionContext) theRejectionMessageMentions(fragment string) error {
	if ctx.uploadErr == nil {
		return fmt.Errorf("no upload error recorded")
	}
	if !strings.Contains(ctx.uploadErr.Error(), fragment) {
		return fmt.Errorf("expected rejection message to mention %q, got %q", fragment, ctx.uploadErr.Error())
	}
	return nil
}

func (ctx *ingestionContext) theTableHoldsRows(kind string, count int) error {
	got, err := ctx.tableCount(domainIngest.Kind(kind))
	if err != nil {
		return err
	}
	if got != int64(count) {
		return fmt.Errorf("expected %d rows in %s table, found %d", count, kind, got)
	}
	return nil
}

func (ctx *ingestionContext) rowsAreSkipped(count int) error {
	if ctx.result == nil {
		return fmt.Errorf("no execution result recorded")
	}
	if ctx.result.SkippedCount != count {
		return fmt.Errorf("expected %d skipped rows, got %d", count, ctx.result.SkippedCount)
	}
	return nil
}

func (ctx *ingestionContext) aReportArtifactIsSaved(name string) error {
	if ctx.result == nil {
		return fmt.Errorf("no execution result recorded")
	}
	path, ok := ctx.result.ErrorFiles[name]
	if !ok {
		return fmt.Errorf("no %q artifact recorded, have %v", name, ctx.result.ErrorFiles)
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("artifact %q missing on disk: %v", name, err)
	}
	return nil
}

func (ctx *ingestionContext) noReportArtifactsAreSaved() error {
	if ctx.result == nil {
		return fmt.Errorf("no execution result recorded")
	}
	if len(ctx.result.ErrorFiles) != 0 {
		return fmt.Errorf("expected no report artifacts, found %v", ctx.result.ErrorFiles)
	}
	return nil
}

func (ctx *ingestionContext) theStyleIsStoredWithBrand(styleCode, brand string) error {
	style, err := ctx.styles.FindByCode(context.Background(), styleCode)
	if err != nil {
		return fmt.Errorf("style %s not found: %v", styleCode, err)
	}
	if style.Brand != brand {
		return fmt.Errorf("expected brand %q on %s, got %q", brand, styleCode, style.Brand)
	}
	return nil
}
