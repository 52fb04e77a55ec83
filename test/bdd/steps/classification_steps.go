package steps

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cucumber/godog"
	"github.com/cucumber/messages/go/v21"
	"gorm.io/gorm"

	"github.com/retailcore/noos-go/internal/adapters/artifacts"
	"github.com/retailcore/noos-go/internal/adapters/persistence"
	"github.com/retailcore/noos-go/internal/application/algo"
	"github.com/retailcore/noos-go/internal/application/ingest"
	domainIngest "github.com/retailcore/noos-go/internal/domain/ingest"
	"github.com/retailcore/noos-go/internal/domain/params"
	"github.com/retailcore/noos-go/internal/domain/shared"
	"github.com/retailcore/noos-go/internal/domain/task"
	"github.com/retailcore/noos-go/internal/infrastructure/database"
)

// classificationContext holds state for NOOS classification BDD tests
type classificationContext struct {
	db           *gorm.DB
	clock        *shared.MockClock
	uploader     *ingest.UploadHandler
	runner       *algo.RunNoosHandler
	params       *persistence.ParameterSetRepositoryGORM
	results      *persistence.NoosResultRepositoryGORM
	artifactsDir string

	// branch is the store seeded for the scenario; sales rows sell
	// through it unless their table carries a channel column
	branch string

	runResult *task.ExecutionResult
	runErr    error
}

func (ctx *classificationContext) reset() {
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

	clock := shared.NewMockClock(time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC))
	styles := persistence.NewStyleRepository(db)
	stores := persistence.NewStoreRepository(db)
	skus := persistence.NewSKURepository(db)
	salesRepo := persistence.NewSaleRepository(db)

	ctx.db = db
	ctx.clock = clock
	ctx.artifactsDir = dir
	ctx.params = persistence.NewParameterSetRepository(db, clock)
	ctx.results = persistence.NewNoosResultRepository(db)
	ctx.uploader = ingest.NewUploadHandler(styles, stores, skus,
		persistence.NewBatchWriter(db), store)
	ctx.runner = algo.NewRunNoosHandler(ctx.params, salesRepo, skus, styles, ctx.results, clock)
	ctx.branch = ""
	ctx.runResult = nil
	ctx.runErr = nil
}

// InitializeClassificationScenario registers step definitions
func InitializeClassificationScenario(sc *godog.ScenarioContext) {
	sCtx := &classificationContext{}

	// Given steps
	sc.Step(`^today is "([^"]*)"$`, sCtx.todayIs)
	sc.Step(`^the store "([^"]*)" exists$`, sCtx.theStoreExists)
	sc.Step(`^the catalog holds these styles:$`, sCtx.theCatalogHoldsTheseStyles)
	sc.Step(`^the catalog holds these SKUs:$`, sCtx.theCatalogHoldsTheseSKUs)
	sc.Step(`^these sales are recorded:$`, sCtx.theseSalesAreRecorded)
	sc.Step(`^the active parameter set has "([^"]*)" set to ([\d.]+)$`, sCtx.theActiveParameterSetHasSetTo)

	// When steps
	sc.Step(`^the classification runs$`, sCtx.theClassificationRuns)
	sc.Step(`^the classification runs with "([^"]*)" overridden to ([\d.]+)$`, sCtx.theClassificationRunsWithOverride)

	// Then steps
	sc.Step(`^(\d+) styles? (?:is|are) classified$`, sCtx.stylesAreClassified)
	sc.Step(`^style "([^"]*)" is classified as (core|bestseller|fashion)$`, sCtx.styleIsClassifiedAs)
	sc.Step(`^the run summary is "([^"]*)"$`, sCtx.theRunSummaryIs)
	sc.Step(`^the run used parameter set "([^"]*)"$`, sCtx.theRunUsedParameterSet)
	sc.Step(`^(\d+) sales? rows? (?:is|are) discarded as liquidation$`, sCtx.salesRowsAreDiscardedAsLiquidation)
	sc.Step(`^the result for "([^"]*)" was calculated on "([^"]*)"$`, sCtx.theResultWasCalculatedOn)
	sc.Step(`^the run fails with message "([^"]*)"$`, sCtx.theRunFailsWithMessage)
	sc.Step(`^the failure is reported as missing data$`, sCtx.theFailureIsReportedAsMissingData)

	// Hooks
	sc.Before(func(gCtx context.Context, sc *godog.Scenario) (context.Context, error) {
		sCtx.reset()
		return gCtx, nil
	})
}

// getCellValueFromTable gets a cell value from a table row by column name.
// It uses the first row (table.Rows[0]) as the header to find the column
// index; an absent column yields "".
func getCellValueFromTable(table *godog.Table, row *messages.PickleTableRow, columnName string) string {
	if len(table.Rows) == 0 {
		return ""
	}
	for i, headerCell := range table.Rows[0].Cells {
		if headerCell.Value == columnName {
			if i < len(row.Cells) {
				return row.Cells[i].Value
			}
			return ""
		}
	}
	return ""
}

func (ctx *classificationContext) load(kind domainIngest.Kind, fileName, tsv string) error {
	_, err := ctx.uploader.Handle(context.Background(), &ingest.UploadCommand{
		TaskID:   "bdd-" + string(kind),
		Kind:     kind,
		FileName: fileName,
		Payload:  []byte(tsv),
	})
	if err != nil {
		return fmt.Errorf("loading %s failed: %w", kind, err)
	}
	return nil
}

func (ctx *classificationContext) run(overrides map[string]interface{}) {
	resp, err := ctx.runner.Handle(context.Background(), &algo.RunNoosCommand{
		TaskID:    "bdd-noos",
		Overrides: overrides,
	})
	ctx.runErr = err
	ctx.runResult = nil
	if resp != nil {
		if result, ok := resp.(*task.ExecutionResult); ok {
			ctx.runResult = result
		}
	}
}

// ============================================================================
// Given Steps
// ============================================================================

func (ctx *classificationContext) todayIs(day string) error {
	t, err := time.Parse("2006-01-02", day)
	if err != nil {
		return fmt.Errorf("bad date %q: %v", day, err)
	}
	ctx.clock.SetTime(t)
	return nil
}

func (ctx *classificationContext) theStoreExists(branch string) error {
	ctx.branch = branch
	return ctx.load(domainIngest.KindStores, "stores.tsv",
		fmt.Sprintf("branch\tcity\n%s\tMETRO\n", branch))
}

func (ctx *classificationContext) theCatalogHoldsTheseStyles(table *godog.Table) error {
	var sb strings.Builder
	sb.WriteString("style\tbrand\tcategory\tsub_category\tmrp\tgender\n")
	for i, row := range table.Rows {
		if i == 0 {
			continue // Skip header row
		}
		sb.WriteString(fmt.Sprintf("%s\tNOVA\t%s\t%s\t999\tM\n",
			getCellValueFromTable(table, row, "style"),
			getCellValueFromTable(table, row, "category"),
			getCellValueFromTable(table, row, "sub_category")))
	}
	return ctx.load(domainIngest.KindStyles, "styles.tsv", sb.String())
}

func (ctx *classificationContext) theCatalogHoldsTheseSKUs(table *godog.Table) error {
	var sb strings.Builder
	sb.WriteString("sku\tstyle\tsize\n")
	for i, row := range table.Rows {
		if i == 0 {
			continue // Skip header row
		}
		sb.WriteString(fmt.Sprintf("%s\t%s\tM\n",
			getCellValueFromTable(table, row, "sku"),
			getCellValueFromTable(table, row, "style")))
	}
	return ctx.load(domainIngest.KindSkus, "skus.tsv", sb.String())
}

func (ctx *classificationContext) theseSalesAreRecorded(table *godog.Table) error {
	var sb strings.Builder
	sb.WriteString("day\tsku\tchannel\tquantity\tdiscount\trevenue\n")
	for i, row := range table.Rows {
		if i == 0 {
			continue // Skip header row
		}
		channel := getCellValueFromTable(table, row, "channel")
		if channel == "" {
			channel = ctx.branch
		}
		if channel == "" {
			return fmt.Errorf("no store seeded and no channel column in the sales table")
		}
		sb.WriteString(fmt.Sprintf("%s\t%s\t%s\t%s\t%s\t%s\n",
			getCellValueFromTable(table, row, "day"),
			getCellValueFromTable(table, row, "sku"),
			channel,
			getCellValueFromTable(table, row, "quantity"),
			getCellValueFromTable(table, row, "discount"),
			getCellValueFromTable(table, row, "revenue")))
	}
	return ctx.load(domainIngest.KindSales, "sales.tsv", sb.String())
}

func (ctx *classificationContext) theActiveParameterSetHasSetTo(field, valueStr string) error {
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return fmt.Errorf("bad value %q: %v", valueStr, err)
	}
	set := params.Defaults()
	set.Name = "scenario"
	switch field {
	case "liquidationThreshold":
		set.LiquidationThreshold = value
	case "bestsellerMultiplier":
		set.BestsellerMultiplier = value
	case "minVolumeThreshold":
		set.MinVolumeThreshold = value
	case "consistencyThreshold":
		set.ConsistencyThreshold = value
	default:
		return fmt.Errorf("unknown parameter field %q", field)
	}
	if _, err := ctx.params.CreateActive(context.Background(), set); err != nil {
		return fmt.Errorf("creating parameter set: %w", err)
	}
	return nil
}

// ============================================================================
// When Steps
// ============================================================================

func (ctx *classificationContext) theClassificationRuns() error {
	ctx.run(nil)
	return nil
}

func (ctx *classificationContext) theClassificationRunsWithOverride(name, valueStr string) error {
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return fmt.Errorf("bad value %q: %v", valueStr, err)
	}
	ctx.run(map[string]interface{}{name: value})
	return nil
}

// ============================================================================
// Then Steps
// ============================================================================

func (ctx *classificationContext) stylesAreClassified(count int) error {
	got, err := ctx.results.Count(context.Background())
	if err != nil {
		return err
	}
	if got != int64(count) {
		return fmt.Errorf("expected %d classified styles, found %d", count, got)
	}
	return nil
}

func (ctx *classificationContext) styleIsClassifiedAs(styleCode, label string) error {
	results, err := ctx.results.FindAll(context.Background())
	if err != nil {
		return err
	}
	for _, r := range results {
		if r.StyleCode == styleCode {
			if string(r.Label) != label {
				return fmt.Errorf("expected %s to be %s, got %s", styleCode, label, r.Label)
			}
			return nil
		}
	}
	return fmt.Errorf("no classification found for style %s", styleCode)
}

func (ctx *classificationContext) theRunSummaryIs(summary string) error {
	if ctx.runErr != nil {
		return fmt.Errorf("run failed: %v", ctx.runErr)
	}
	if ctx.runResult == nil {
		return fmt.Errorf("no run result recorded")
	}
	got, _ := ctx.runResult.Parameters["summary"].(string)
	if got != summary {
		return fmt.Errorf("expected summary %q, got %q", summary, got)
	}
	return nil
}

func (ctx *classificationContext) theRunUsedParameterSet(name string) error {
	if ctx.runResult == nil {
		return fmt.Errorf("no run result recorded")
	}
	got := fmt.Sprint(ctx.runResult.Parameters["parameterSetName"])
	if got != name {
		return fmt.Errorf("expected parameter set %q, got %q", name, got)
	}
	return nil
}

func (ctx *classificationContext) salesRowsAreDiscardedAsLiquidation(count int) error {
	if ctx.runResult == nil {
		return fmt.Errorf("no run result recorded")
	}
	got := fmt.Sprint(ctx.runResult.Parameters["discardedLiquidation"])
	if got != strconv.Itoa(count) {
		return fmt.Errorf("expected %d discarded rows, got %s", count, got)
	}
	return nil
}

func (ctx *classificationContext) theResultWasCalculatedOn(styleCode, day string) error {
	results, err := ctx.results.FindAll(context.Background())
	if err != nil {
		return err
	}
	for _, r := range results {
		if r.StyleCode == styleCode {
			if got := r.CalculatedDate.Format("2006-01-02"); got != day {
				return fmt.Errorf("expected %s calculated on %s, got %s", styleCode, day, got)
			}
			return nil
		}
	}
	return fmt.Errorf("no classification found for style %s", styleCode)
}

func (ctx *classificationContext) theRunFailsWithMessage(message string) error {
	if ctx.runErr == nil {
		return fmt.Errorf("expected the run to fail")
	}
	if !strings.Contains(ctx.runErr.Error(), message) {
		return fmt.Errorf("expected failure mentioning %q, got %q", message, ctx.runErr.Error())
	}
	return nil
}

func (ctx *classificationContext) theFailureIsReportedAsMissingData() error {
	if ctx.runErr == nil {
		return fmt.Errorf("expected the run to fail")
	}
	if !shared.IsKind(ctx.runErr, shared.KindNoData) {
		return fmt.Errorf("expected NO_DATA error, got: %v", ctx.runErr)
	}
	return nil
}
