package export

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/retailcore/noos-go/internal/application/logging"
	"github.com/retailcore/noos-go/internal/application/mediator"
	"github.com/retailcore/noos-go/internal/domain/catalog"
	"github.com/retailcore/noos-go/internal/domain/ingest"
	"github.com/retailcore/noos-go/internal/domain/noos"
	"github.com/retailcore/noos-go/internal/domain/sales"
	"github.com/retailcore/noos-go/internal/domain/shared"
	"github.com/retailcore/noos-go/internal/domain/task"
)

// Export kinds. The first four mirror the upload kinds and reproduce the
// upload column order; noos exports the latest classification run.
const (
	KindStyles = "styles"
	KindStores = "stores"
	KindSkus   = "skus"
	KindSales  = "sales"
	KindNoos   = "noos"
)

const noosHeader = "style\tcategory\ttype\ttotal_quantity\ttotal_revenue\tavg_discount\tdays_with_sales\tdays_available\tros\trev_contribution\tcalculated_date"

// DownloadCommand exports one table as a TSV artifact
type DownloadCommand struct {
	TaskID  string
	Kind    string
	Runtime task.Runtime
}

// DownloadHandler streams the current table contents into a per-task
// artifact file that the result endpoint serves back.
type DownloadHandler struct {
	styles    catalog.StyleRepository
	stores    catalog.StoreRepository
	skus      catalog.SKURepository
	sales     sales.Repository
	results   noos.ResultRepository
	artifacts task.ArtifactStore
}

// NewDownloadHandler creates a new download handler
func NewDownloadHandler(
	styles catalog.StyleRepository,
	stores catalog.StoreRepository,
	skus catalog.SKURepository,
	salesRepo sales.Repository,
	results noos.ResultRepository,
	artifacts task.ArtifactStore,
) *DownloadHandler {
	return &DownloadHandler{
		styles:    styles,
		stores:    stores,
		skus:      skus,
		sales:     salesRepo,
		results:   results,
		artifacts: artifacts,
	}
}

// Handle executes the download command
func (h *DownloadHandler) Handle(ctx context.Context, request mediator.Request) (mediator.Response, error) {
	cmd, ok := request.(*DownloadCommand)
	if !ok {
		return nil, fmt.Errorf("invalid request type")
	}
	rt := cmd.Runtime
	if rt == nil {
		rt = task.NopRuntime{ID: cmd.TaskID}
	}
	logger := logging.FromContext(ctx)

	rt.Progress(ctx, 5, fmt.Sprintf("Preparing %s export", cmd.Kind), 0)
	if err := rt.CheckCancelled(ctx); err != nil {
		return nil, err
	}

	file, path, err := h.artifacts.Create(ctx, cmd.TaskID, cmd.Kind+".tsv")
	if err != nil {
		return nil, shared.WrapError(shared.KindInternal, "create export artifact", err)
	}
	buf := bufio.NewWriter(file)

	rows, err := h.export(ctx, cmd.Kind, rt, buf)
	if err != nil {
		file.Close()
		return nil, err
	}
	if err := buf.Flush(); err != nil {
		file.Close()
		return nil, shared.WrapError(shared.KindInternal, "flush export artifact", err)
	}
	if err := file.Close(); err != nil {
		return nil, shared.WrapError(shared.KindInternal, "close export artifact", err)
	}

	rt.Progress(ctx, 97, "Finalizing", rows)
	logger.Logf(task.LogLevelInfo, "exported %d %s rows to %s", rows, cmd.Kind, path)
	return &task.ExecutionResult{
		TotalRecords:     rows,
		ProcessedRecords: rows,
		ResultPath:       path,
		FinalMessage:     fmt.Sprintf("Exported %d %s rows", rows, cmd.Kind),
	}, nil
}

func (h *DownloadHandler) export(ctx context.Context, kind string, rt task.Runtime, w *bufio.Writer) (int, error) {
	switch kind {
	case KindStyles:
		return h.exportStyles(ctx, rt, w)
	case KindStores:
		return h.exportStores(ctx, rt, w)
	case KindSkus:
		return h.exportSkus(ctx, rt, w)
	case KindSales:
		return h.exportSales(ctx, rt, w)
	case KindNoos:
		return h.exportNoos(ctx, rt, w)
	}
	return 0, shared.Errorf(shared.KindValidation, "unsupported download kind %q", kind)
}

func (h *DownloadHandler) exportStyles(ctx context.Context, rt task.Runtime, w *bufio.Writer) (int, error) {
	all, err := h.styles.FindAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load styles: %w", err)
	}
	writeHeader(w, ingest.KindStyles)
	for i, s := range all {
		writeRow(w, s.StyleCode, s.Brand, s.Category, s.SubCategory, dec(s.MRP), s.Gender)
		if err := tick(ctx, rt, i+1, len(all)); err != nil {
			return 0, err
		}
	}
	return len(all), nil
}

func (h *DownloadHandler) exportStores(ctx context.Context, rt task.Runtime, w *bufio.Writer) (int, error) {
	all, err := h.stores.FindAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load stores: %w", err)
	}
	writeHeader(w, ingest.KindStores)
	for i, s := range all {
		writeRow(w, s.Branch, s.City)
		if err := tick(ctx, rt, i+1, len(all)); err != nil {
			return 0, err
		}
	}
	return len(all), nil
}

func (h *DownloadHandler) exportSkus(ctx context.Context, rt task.Runtime, w *bufio.Writer) (int, error) {
	all, err := h.skus.FindAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load SKUs: %w", err)
	}
	writeHeader(w, ingest.KindSkus)
	for i, s := range all {
		writeRow(w, s.SKUCode, s.StyleCode, s.Size)
		if err := tick(ctx, rt, i+1, len(all)); err != nil {
			return 0, err
		}
	}
	return len(all), nil
}

func (h *DownloadHandler) exportSales(ctx context.Context, rt task.Runtime, w *bufio.Writer) (int, error) {
	total, err := h.sales.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count sales: %w", err)
	}
	writeHeader(w, ingest.KindSales)
	written := 0
	err = h.sales.ForEachBatch(ctx, ingest.DefaultChunkSize, func(batch []*sales.Sale) error {
		for _, s := range batch {
			writeRow(w, s.Date.Format(ingest.DateLayout), s.SKUCode, s.Branch,
				strconv.Itoa(s.Quantity), dec(s.Discount), dec(s.Revenue))
		}
		written += len(batch)
		return tick(ctx, rt, written, int(total))
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}

func (h *DownloadHandler) exportNoos(ctx context.Context, rt task.Runtime, w *bufio.Writer) (int, error) {
	all, err := h.results.FindAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load classification results: %w", err)
	}
	w.WriteString(noosHeader + "\n")
	for i, r := range all {
		writeRow(w, r.StyleCode, r.Category, string(r.Label),
			strconv.Itoa(r.TotalQuantitySold), dec(r.TotalRevenue), dec(r.AvgDiscount),
			strconv.Itoa(r.DaysWithSales), strconv.Itoa(r.DaysAvailable),
			dec(r.StyleROS), dec(r.StyleRevContribution),
			r.CalculatedDate.Format(time.RFC3339))
		if err := tick(ctx, rt, i+1, len(all)); err != nil {
			return 0, err
		}
	}
	return len(all), nil
}

func writeHeader(w *bufio.Writer, kind ingest.Kind) {
	w.WriteString(strings.Join(ingest.SchemaFor(kind).Header(), "\t") + "\n")
}

func writeRow(w *bufio.Writer, fields ...string) {
	w.WriteString(strings.Join(fields, "\t") + "\n")
}

// tick checks cancellation and publishes progress once per chunk
func tick(ctx context.Context, rt task.Runtime, written, total int) error {
	if written%ingest.DefaultChunkSize != 0 && written != total {
		return nil
	}
	if err := rt.CheckCancelled(ctx); err != nil {
		return err
	}
	pct := 5.0
	if total > 0 {
		pct += 90.0 * float64(written) / float64(total)
	}
	rt.Progress(ctx, pct, fmt.Sprintf("Exporting %d of %d rows", written, total), written)
	return nil
}

// dec renders a decimal without trailing zeros
func dec(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
