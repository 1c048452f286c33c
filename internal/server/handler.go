package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/harshithgowdakt/widepart/internal/column"
	"github.com/harshithgowdakt/widepart/internal/storage"
	"github.com/harshithgowdakt/widepart/internal/types"
)

// Caches are shared by every part reader the API opens. Nil caches are
// valid and cache nothing.
type Caches struct {
	Marks        *storage.MarkCache
	Uncompressed *storage.UncompressedCache
}

// Handler serves the introspection API over a database.
type Handler struct {
	db     *storage.Database
	caches Caches
	mux    *http.ServeMux
}

// NewHandler returns the admin API of db. Metrics registered with reg are
// exposed on /metrics.
func NewHandler(db *storage.Database, reg *prometheus.Registry, caches Caches) *Handler {
	h := &Handler{db: db, caches: caches, mux: http.NewServeMux()}
	h.mux.HandleFunc("GET /ping", h.HandlePing)
	h.mux.HandleFunc("GET /tables", h.HandleTables)
	h.mux.HandleFunc("GET /tables/{table}/parts", h.HandleParts)
	h.mux.HandleFunc("GET /tables/{table}/parts/{part}/columns", h.HandleColumns)
	h.mux.HandleFunc("GET /tables/{table}/parts/{part}/rows", h.HandleRows)
	h.mux.HandleFunc("POST /tables/{table}/parts/{part}/check", h.HandleCheck)
	h.mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// HandlePing responds with "Ok." for health checks.
func (h *Handler) HandlePing(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, "Ok.")
}

// HandleTables lists every table with totals over its active parts.
func (h *Handler) HandleTables(w http.ResponseWriter, r *http.Request) {
	res := newResult(
		"name", types.TypeString,
		"parts", types.TypeUInt64,
		"rows", types.TypeUInt64,
		"bytes_on_disk", types.TypeUInt64,
		"order_by", types.TypeString,
		"partition_by", types.TypeString,
	)
	for _, name := range h.db.TableNames() {
		t, ok := h.db.GetTable(name)
		if !ok {
			continue
		}
		parts := t.GetActiveParts()
		var rows, bytes uint64
		for _, p := range parts {
			n, _ := p.RowsCount()
			rows += n
			bytes += p.BytesOnDisk()
		}
		res.add(name, uint64(len(parts)), rows, bytes,
			strings.Join(t.Schema.OrderBy, ", "), t.Schema.PartitionBy)
	}
	writeResult(w, r, res)
}

// HandleParts lists the active parts of a table.
func (h *Handler) HandleParts(w http.ResponseWriter, r *http.Request) {
	t, ok := h.table(w, r)
	if !ok {
		return
	}
	res := newResult(
		"name", types.TypeString,
		"partition_id", types.TypeString,
		"min_block", types.TypeUInt64,
		"max_block", types.TypeUInt64,
		"level", types.TypeUInt32,
		"state", types.TypeString,
		"rows", types.TypeUInt64,
		"marks", types.TypeUInt64,
		"mark_type", types.TypeString,
		"bytes_on_disk", types.TypeUInt64,
		"has_checksums", types.TypeUInt8,
		"is_remote", types.TypeUInt8,
		"uuid", types.TypeString,
		"path", types.TypeString,
	)
	for _, p := range t.GetActiveParts() {
		rows, _ := p.RowsCount()
		marks, _ := p.MarksCount()
		res.add(p.Name, p.Info.PartitionID, p.Info.MinBlock, p.Info.MaxBlock, p.Info.Level,
			p.State().String(), rows, uint64(marks), p.GranularityInfo.MarkType.String(),
			p.BytesOnDisk(), flag(!p.Checksums.Empty()), flag(p.IsStoredOnRemoteDisk()),
			p.UUID.String(), p.Storage.FullPath())
	}
	writeResult(w, r, res)
}

// HandleColumns lists the columns of a part with their on-disk sizes.
func (h *Handler) HandleColumns(w http.ResponseWriter, r *http.Request) {
	t, ok := h.table(w, r)
	if !ok {
		return
	}
	p, ok := h.part(w, r, t)
	if !ok {
		return
	}
	defer p.Release(r.Context())

	sizes, _, err := p.CalculateEachColumnSizes()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	res := newResult(
		"name", types.TypeString,
		"type", types.TypeString,
		"file", types.TypeString,
		"has_files", types.TypeUInt8,
		"data_compressed", types.TypeUInt64,
		"data_uncompressed", types.TypeUInt64,
		"marks", types.TypeUInt64,
	)
	for _, c := range p.Columns {
		file, err := p.FileNameForColumn(r.Context(), c)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		s := sizes[c.Name]
		res.add(c.Name, c.Type.String(), file, flag(p.HasColumnFiles(c)),
			s.DataCompressed, s.DataUncompressed, s.Marks)
	}
	writeResult(w, r, res)
}

// HandleRows reads a mark range of a part. Query parameters: columns, a
// comma separated list defaulting to every table column, and the half-open
// mark range from/to defaulting to the whole part.
func (h *Handler) HandleRows(w http.ResponseWriter, r *http.Request) {
	t, ok := h.table(w, r)
	if !ok {
		return
	}
	p, ok := h.part(w, r, t)
	if !ok {
		return
	}
	defer p.Release(r.Context())

	q := r.URL.Query()
	columns := t.Schema.NamesAndTypes()
	if list := q.Get("columns"); list != "" {
		columns = columns[:0:0]
		for _, name := range strings.Split(list, ",") {
			def, ok := t.Schema.GetColumnDef(strings.TrimSpace(name))
			if !ok {
				http.Error(w, fmt.Sprintf("table %s has no column %s", t.Name, name), http.StatusBadRequest)
				return
			}
			columns = append(columns, types.NameAndType{Name: def.Name, Type: def.Type})
		}
	}

	marks, _ := p.MarksCount()
	from, err1 := queryInt(q.Get("from"), 0)
	to, err2 := queryInt(q.Get("to"), marks)
	for _, err := range []error{err1, err2} {
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	reader, err := p.Reader(columns, []storage.MarkRange{{Begin: from, End: to}}, h.caches.Uncompressed, h.caches.Marks)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer reader.Close(r.Context())
	block, err := reader.Read(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	format := ParseFormat(q.Get("format"))
	w.Header().Set("Content-Type", format.ContentType())
	if err := FormatBlock(w, block, format); err != nil {
		http.Error(w, fmt.Sprintf("format error: %v", err), http.StatusInternalServerError)
	}
}

// HandleCheck validates one part and reports a row per check. The
// response status is 422 when any check fails.
//
// Query parameters: require_metadata (defaults to the table setting),
// strict, and verify to recompute file hashes against the manifest.
func (h *Handler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	t, ok := h.table(w, r)
	if !ok {
		return
	}
	p, ok := h.part(w, r, t)
	if !ok {
		return
	}
	defer p.Release(r.Context())

	q := r.URL.Query()
	requireMetadata, err1 := queryBool(q.Get("require_metadata"), t.Settings.RequirePartMetadata)
	strict, err2 := queryBool(q.Get("strict"), false)
	verify, err3 := queryBool(q.Get("verify"), false)
	for _, err := range []error{err1, err2, err3} {
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	v := checkPart(r.Context(), p, requireMetadata, strict, verify)
	w.Header().Set("Content-Type", ParseFormat(q.Get("format")).ContentType())
	if v.failed {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}
	_ = FormatBlock(w, v.result.block(), ParseFormat(q.Get("format")))
}

type verdict struct {
	result *result
	failed bool
}

func (v *verdict) record(check string, err error) {
	if err != nil {
		v.failed = true
		v.result.add(check, "failed", err.Error())
		return
	}
	v.result.add(check, "ok", "")
}

func checkPart(ctx context.Context, p *storage.DataPart, requireMetadata, strict, verify bool) *verdict {
	v := &verdict{result: newResult(
		"check", types.TypeString,
		"status", types.TypeString,
		"message", types.TypeString,
	)}

	var skipped []string
	err := p.CheckConsistencyWithOptions(ctx, requireMetadata, storage.ConsistencyOptions{
		Strict: strict,
		OnMissing: func(column, file string) {
			skipped = append(skipped, column+": "+file)
		},
	})
	v.record("consistency", err)
	for _, s := range skipped {
		v.result.add("missing_marks", "skipped", s)
	}

	sizes, _, err := p.CalculateEachColumnSizes()
	if err == nil {
		err = storage.VerifyColumnSizes(p, sizes)
	}
	v.record("column_sizes", err)

	if verify {
		if p.Checksums.Empty() {
			v.result.add("checksums", "skipped", "part has no checksums manifest")
		} else {
			v.record("checksums", storage.VerifyChecksums(ctx, p.Storage, p.Checksums))
		}
	}
	return v
}

func (h *Handler) table(w http.ResponseWriter, r *http.Request) (*storage.MergeTreeTable, bool) {
	name := r.PathValue("table")
	t, ok := h.db.GetTable(name)
	if !ok {
		http.Error(w, fmt.Sprintf("table %s does not exist", name), http.StatusNotFound)
	}
	return t, ok
}

// part returns an active part holding a reference the caller must release.
func (h *Handler) part(w http.ResponseWriter, r *http.Request, t *storage.MergeTreeTable) (*storage.DataPart, bool) {
	name := r.PathValue("part")
	p, ok := t.GetPart(name)
	if !ok {
		http.Error(w, fmt.Sprintf("part %s of table %s does not exist", name, t.Name), http.StatusNotFound)
		return nil, false
	}
	p.Acquire()
	return p, true
}

func queryBool(s string, def bool) (bool, error) {
	if s == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid boolean %q", s)
	}
	return b, nil
}

func queryInt(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", s)
	}
	return n, nil
}

func flag(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// result accumulates rows of a response table.
type result struct {
	names []string
	cols  []column.Column
}

// newResult takes alternating column names and types.
func newResult(spec ...any) *result {
	res := &result{}
	for i := 0; i+1 < len(spec); i += 2 {
		res.names = append(res.names, spec[i].(string))
		res.cols = append(res.cols, column.NewColumn(types.Scalar(spec[i+1].(types.DataType))))
	}
	return res
}

func (r *result) add(values ...types.Value) {
	for i, v := range values {
		r.cols[i].Append(v)
	}
}

func (r *result) block() *column.Block {
	return column.NewBlock(r.names, r.cols)
}

func writeResult(w http.ResponseWriter, r *http.Request, res *result) {
	format := ParseFormat(r.URL.Query().Get("format"))
	w.Header().Set("Content-Type", format.ContentType())
	if err := FormatBlock(w, res.block(), format); err != nil {
		http.Error(w, fmt.Sprintf("format error: %v", err), http.StatusInternalServerError)
	}
}
