package ingest

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/retailcore/noos-go/internal/application/logging"
	"github.com/retailcore/noos-go/internal/application/mediator"
	"github.com/retailcore/noos-go/internal/domain/catalog"
	domainIngest "github.com/retailcore/noos-go/internal/domain/ingest"
	"github.com/retailcore/noos-go/internal/domain/sales"
	"github.com/retailcore/noos-go/internal/domain/shared"
	"github.com/retailcore/noos-go/internal/domain/task"
)

// UploadCommand ingests one staged TSV file into the table its kind names.
// The payload comes from StagedPath unless Payload is set directly.
type UploadCommand struct {
	TaskID     string
	Kind       domainIngest.Kind
	FileName   string
	StagedPath string
	Payload    []byte
	Runtime    task.Runtime
}

// UploadHandler runs the ingestion pipeline: parse, validate, resolve
// foreign keys, then clear and persist inside a single transaction.
// Master kinds are all-or-nothing; sales rows with an unknown SKU are
// skipped, every other row problem rejects the whole batch.
type UploadHandler struct {
	styles    catalog.StyleRepository
	stores    catalog.StoreRepository
	skus      catalog.SKURepository
	writer    domainIngest.BatchWriter
	artifacts task.ArtifactStore
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(
	styles catalog.StyleRepository,
	stores catalog.StoreRepository,
	skus catalog.SKURepository,
	writer domainIngest.BatchWriter,
	artifacts task.ArtifactStore,
) *UploadHandler {
	return &UploadHandler{
		styles:    styles,
		stores:    stores,
		skus:      skus,
		writer:    writer,
		artifacts: artifacts,
	}
}

// Handle executes the upload command
func (h *UploadHandler) Handle(ctx context.Context, request mediator.Request) (mediator.Response, error) {
	cmd, ok := request.(*UploadCommand)
	if !ok {
		return nil, fmt.Errorf("invalid request type")
	}
	rt := cmd.Runtime
	if rt == nil {
		rt = task.NopRuntime{ID: cmd.TaskID}
	}
	logger := logging.FromContext(ctx)

	payload, err := cmd.payload()
	if err != nil {
		return nil, shared.WrapError(shared.KindInternal, "read staged upload", err)
	}

	schema := domainIngest.SchemaFor(cmd.Kind)
	rt.Progress(ctx, 5, fmt.Sprintf("Parsing %s", cmd.FileName), 0)
	rows, err := domainIngest.Parse(payload, schema)
	if err != nil {
		return &task.ExecutionResult{FinalMessage: err.Error()}, err
	}
	logger.Logf(task.LogLevelInfo, "parsed %d data rows from %s", len(rows), cmd.FileName)

	typed, rowErrors := domainIngest.ValidateBatch(rows, schema)
	rt.Progress(ctx, 10, fmt.Sprintf("Validated %d rows", len(rows)), 0)

	resolved, fkErrors, skipped, err := h.resolve(ctx, cmd.Kind, typed)
	if err != nil {
		return nil, err
	}
	rowErrors = append(rowErrors, fkErrors...)
	sort.Slice(rowErrors, func(i, j int) bool { return rowErrors[i].Line < rowErrors[j].Line })

	result := &task.ExecutionResult{
		TotalRecords: len(rows),
		ErrorCount:   len(rowErrors),
		SkippedCount: len(skipped),
		ErrorFiles:   map[string]string{},
	}
	outcome := domainIngest.NewOutcome(resolved.size(), rowErrors, skipped)

	if len(skipped) > 0 {
		h.saveArtifact(ctx, logger, result, cmd.TaskID, "skipped_rows", skippedReport(schema, skipped))
		for _, s := range skipped {
			logger.Log(task.LogLevelWarn, s.Warning())
		}
	}

	if len(rowErrors) > 0 {
		if fieldErrs := fieldErrors(rowErrors); len(fieldErrs) > 0 {
			h.saveArtifact(ctx, logger, result, cmd.TaskID, "validation_errors", rejectedReport(schema, fieldErrs))
		}
		h.saveArtifact(ctx, logger, result, cmd.TaskID, "all_failed_with_errors", rejectedReport(schema, rowErrors))
		h.saveArtifact(ctx, logger, result, cmd.TaskID, "error_summary", summaryReport(rowErrors))
		logger.Logf(task.LogLevelError, "batch rejected: %s", outcome.Summary())
		result.FinalMessage = outcome.Summary()
		return result, shared.NewValidationError(outcome.Summary())
	}

	if err := rt.CheckCancelled(ctx); err != nil {
		return result, err
	}

	total := resolved.size()
	checkpoint := func(written int) error {
		if err := rt.CheckCancelled(ctx); err != nil {
			return err
		}
		pct := 10.0
		if total > 0 {
			pct += 85.0 * float64(written) / float64(total)
		}
		rt.Progress(ctx, pct, fmt.Sprintf("Loading %d of %d rows", written, total), written)
		return nil
	}
	if err := h.persist(ctx, cmd.Kind, resolved, checkpoint); err != nil {
		return result, err
	}

	rt.Progress(ctx, 97, "Finalizing", total)
	result.ProcessedRecords = total
	result.FinalMessage = outcome.Summary()
	logger.Logf(task.LogLevelInfo, "loaded %d %s rows, %d skipped", total, cmd.Kind, len(skipped))
	return result, nil
}

func (c *UploadCommand) payload() ([]byte, error) {
	if c.Payload != nil {
		return c.Payload, nil
	}
	return os.ReadFile(c.StagedPath)
}

// batch carries the resolved rows of whichever kind is being loaded
type batch struct {
	styles []*catalog.Style
	stores []*catalog.Store
	skus   []*catalog.SKU
	sales  []*sales.Sale
}

func (b batch) size() int {
	return len(b.styles) + len(b.stores) + len(b.skus) + len(b.sales)
}

// resolve turns validated rows into entities, resolving foreign keys.
// SKU rows require an existing style; sales rows skip on unknown SKU and
// error on unknown store. Lookups run before the write transaction, which
// is safe because uploads of dependent kinds clear the sales table anyway
// and concurrent conflicting uploads surface as constraint failures.
func (h *UploadHandler) resolve(ctx context.Context, kind domainIngest.Kind, typed []*domainIngest.TypedRow) (batch, []domainIngest.RowError, []domainIngest.SkippedRow, error) {
	var b batch
	switch kind {
	case domainIngest.KindStyles:
		for _, row := range typed {
			b.styles = append(b.styles, catalog.NewStyle(
				row.Text["style"], row.Text["brand"], row.Text["category"],
				row.Text["sub_category"], row.Decimals["mrp"], row.Text["gender"]))
		}
		return b, nil, nil, nil

	case domainIngest.KindStores:
		for _, row := range typed {
			b.stores = append(b.stores, catalog.NewStore(row.Text["branch"], row.Text["city"]))
		}
		return b, nil, nil, nil

	case domainIngest.KindSkus:
		styleIDs, err := h.styles.CodeToID(ctx)
		if err != nil {
			return b, nil, nil, fmt.Errorf("failed to index styles: %w", err)
		}
		var errs []domainIngest.RowError
		for _, row := range typed {
			styleID, found := styleIDs[row.Text["style"]]
			if !found {
				errs = append(errs, domainIngest.RowError{Line: row.Line, Reason: "unknown:style", Raw: row.Raw})
				continue
			}
			b.skus = append(b.skus, catalog.NewSKU(row.Text["sku"], styleID, row.Text["style"], row.Text["size"]))
		}
		return b, errs, nil, nil

	case domainIngest.KindSales:
		skuIDs, err := h.skus.CodeToID(ctx)
		if err != nil {
			return b, nil, nil, fmt.Errorf("failed to index SKUs: %w", err)
		}
		storeIDs, err := h.stores.BranchToID(ctx)
		if err != nil {
			return b, nil, nil, fmt.Errorf("failed to index stores: %w", err)
		}
		var errs []domainIngest.RowError
		var skips []domainIngest.SkippedRow
		for _, row := range typed {
			// SKU is checked first: an unknown SKU skips the row before the
			// store is ever looked at.
			skuID, found := skuIDs[row.Text["sku"]]
			if !found {
				skips = append(skips, domainIngest.SkippedRow{Line: row.Line, SKUCode: row.Text["sku"], Raw: row.Raw})
				continue
			}
			storeID, found := storeIDs[row.Text["channel"]]
			if !found {
				errs = append(errs, domainIngest.RowError{Line: row.Line, Reason: "unknown:channel", Raw: row.Raw})
				continue
			}
			b.sales = append(b.sales, sales.NewSale(
				row.Dates["day"], skuID, row.Text["sku"], storeID, row.Text["channel"],
				row.Ints["quantity"], row.Decimals["discount"], row.Decimals["revenue"]))
		}
		return b, errs, skips, nil
	}
	return b, nil, nil, shared.Errorf(shared.KindValidation, "unsupported upload kind %q", kind)
}

func (h *UploadHandler) persist(ctx context.Context, kind domainIngest.Kind, b batch, checkpoint domainIngest.Checkpoint) error {
	switch kind {
	case domainIngest.KindStyles:
		return h.writer.ReplaceStyles(ctx, b.styles, domainIngest.DefaultChunkSize, checkpoint)
	case domainIngest.KindStores:
		return h.writer.ReplaceStores(ctx, b.stores, domainIngest.DefaultChunkSize, checkpoint)
	case domainIngest.KindSkus:
		return h.writer.ReplaceSkus(ctx, b.skus, domainIngest.DefaultChunkSize, checkpoint)
	case domainIngest.KindSales:
		return h.writer.ReplaceSales(ctx, b.sales, domainIngest.DefaultChunkSize, checkpoint)
	}
	return shared.Errorf(shared.KindValidation, "unsupported upload kind %q", kind)
}

func (h *UploadHandler) saveArtifact(ctx context.Context, logger logging.TaskLogger, result *task.ExecutionResult, taskID, name string, data []byte) {
	path, err := h.artifacts.Save(ctx, taskID, name+".tsv", data)
	if err != nil {
		logger.Logf(task.LogLevelWarn, "could not store %s report: %v", name, err)
		return
	}
	result.ErrorFiles[name] = path
}

// fieldErrors filters out foreign-key misses, leaving the field-level
// validation failures
func fieldErrors(rowErrors []domainIngest.RowError) []domainIngest.RowError {
	var out []domainIngest.RowError
	for _, e := range rowErrors {
		if !strings.HasPrefix(e.Reason, "unknown:") {
			out = append(out, e)
		}
	}
	return out
}

// rejectedReport renders rejected rows in the file's own column order with
// a trailing error column
func rejectedReport(schema domainIngest.Schema, rowErrors []domainIngest.RowError) []byte {
	var sb strings.Builder
	sb.WriteString(strings.Join(schema.Header(), "\t"))
	sb.WriteString("\terror\n")
	for _, e := range rowErrors {
		fmt.Fprintf(&sb, "%s\t%s\n", strings.Join(e.Raw, "\t"), e.String())
	}
	return []byte(sb.String())
}

// skippedReport renders skipped sales rows with a trailing error column
func skippedReport(schema domainIngest.Schema, skipped []domainIngest.SkippedRow) []byte {
	var sb strings.Builder
	sb.WriteString(strings.Join(schema.Header(), "\t"))
	sb.WriteString("\terror\n")
	for _, s := range skipped {
		fmt.Fprintf(&sb, "%s\t%s\n", strings.Join(s.Raw, "\t"), s.Warning())
	}
	return []byte(sb.String())
}

// summaryReport renders row-error counts grouped by reason code
func summaryReport(rowErrors []domainIngest.RowError) []byte {
	counts := make(map[string]int)
	for _, e := range rowErrors {
		counts[e.Reason]++
	}
	reasons := make([]string, 0, len(counts))
	for reason := range counts {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)

	var sb strings.Builder
	sb.WriteString("error\tcount\n")
	for _, reason := range reasons {
		fmt.Fprintf(&sb, "%s\t%d\n", reason, counts[reason])
	}
	return []byte(sb.String())
}
