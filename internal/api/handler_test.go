package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/huuly01092003/Smart-bi/internal/config"
	"github.com/huuly01092003/Smart-bi/internal/model"
	"github.com/huuly01092003/Smart-bi/internal/service/table"
	"github.com/huuly01092003/Smart-bi/internal/session"
	"github.com/huuly01092003/Smart-bi/internal/store"
	"github.com/huuly01092003/Smart-bi/internal/testfixture"
)

type testEnv struct {
	h      *Handler
	router *gin.Engine
	store  *store.Store
}

func newTestEnv(t *testing.T, mutate func(cfg *config.AppConfig)) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	st, err := store.New(filepath.Join(dir, "smartbi.db"))
	if err != nil {
		t.Fatalf("init store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	cfg := config.DefaultConfig()
	cfg.Upload.RatePerMinute = 600
	cfg.Upload.Burst = 100
	if mutate != nil {
		mutate(cfg)
	}
	h := NewHandler(Deps{
		Config:    cfg,
		Sessions:  session.NewManager(session.Options{}),
		Store:     st,
		ExportDir: dir,
		Version:   "test",
	})
	r := gin.New()
	api := r.Group("/api")
	h.RegisterRoutes(api)
	return &testEnv{h: h, router: r, store: st}
}

type upload struct {
	field    string
	filename string
	data     []byte
}

func (e *testEnv) upload(t *testing.T, sessionID string, files ...upload) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		part, err := mw.CreateFormFile(f.field, f.filename)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		if _, err := part.Write(f.data); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if sessionID != "" {
		req.Header.Set(SessionHeader, sessionID)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) do(t *testing.T, method, path, sessionID string, body io.Reader, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sessionID != "" {
		req.Header.Set(SessionHeader, sessionID)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

// loadFull 上传完整工作簿，返回会话 ID 与响应
func (e *testEnv) loadFull(t *testing.T) (string, map[string]any) {
	t.Helper()
	w := e.upload(t, "", upload{field: "files", filename: "data.xlsx", data: testfixture.Full(t)})
	if w.Code != http.StatusOK {
		t.Fatalf("upload status: %d body=%s", w.Code, w.Body.String())
	}
	resp := decode(t, w)
	id, _ := resp["sessionId"].(string)
	if id == "" {
		t.Fatalf("missing session id: %v", resp)
	}
	return id, resp
}

func detailByCode(t *testing.T, rows any) map[string]map[string]any {
	t.Helper()
	list, ok := rows.([]any)
	if !ok {
		t.Fatalf("detailRows: %T", rows)
	}
	out := make(map[string]map[string]any, len(list))
	for _, r := range list {
		m := r.(map[string]any)
		out[m[model.ColDetailCustCode].(string)] = m
	}
	return out
}

func TestUpload_FullWorkbookAndViews(t *testing.T) {
	env := newTestEnv(t, nil)
	id, resp := env.loadFull(t)

	if sheets, _ := resp["sheets"].([]any); len(sheets) != 4 {
		t.Fatalf("sheets: %v", resp["sheets"])
	}
	if balance, _ := resp["balanceLoad"].([]any); len(balance) != 2 {
		t.Fatalf("balance: %v", resp["balanceLoad"])
	}
	if master := resp["masterParams"].(map[string]any); master["KH_Max_NVBH"] != 2.0 {
		t.Fatalf("master: %v", master)
	}

	w := env.do(t, http.MethodGet, "/api/sheets", id, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("sheets status: %d", w.Code)
	}

	w = env.do(t, http.MethodGet, "/api/data/revenue", id, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("data status: %d body=%s", w.Code, w.Body.String())
	}
	data := decode(t, w)
	if data["total_rows"] != 3.0 || data["grouped_columns"] == nil || data["filters"] == nil {
		t.Fatalf("data payload: %v", data)
	}

	q := url.Values{model.ColStatus: {"Active"}}
	w = env.do(t, http.MethodGet, "/api/sheet/customers?"+q.Encode(), id, nil)
	if got := decode(t, w)["total_rows"]; got != 2.0 {
		t.Fatalf("filtered customers: %v", got)
	}

	w = env.do(t, http.MethodGet, "/api/filter/revenue?classification=High", id, nil)
	filtered := decode(t, w)
	if filtered["total_rows"] != 1.0 {
		t.Fatalf("filter by class: %v", filtered)
	}

	w = env.do(t, http.MethodGet, "/api/analytics/revenue", id, nil)
	if a := decode(t, w)["analytics"].(map[string]any); a["total_rows"] != 3.0 {
		t.Fatalf("analytics: %v", a)
	}

	w = env.do(t, http.MethodGet, "/api/charts/staff_routes", id, nil)
	if set := decode(t, w)["charts"].(map[string]any); len(set["charts"].([]any)) == 0 {
		t.Fatalf("charts: %v", set)
	}

	if n := env.h.sessions.Len(); n != 1 {
		t.Fatalf("sessions: %d", n)
	}
	s, _ := env.h.sessions.Get(id)
	if s.CachedViews() == 0 {
		t.Fatalf("views not memoized")
	}
}

func TestView_SortAndClampPage(t *testing.T) {
	env := newTestEnv(t, nil)
	id, _ := env.loadFull(t)

	path := "/api/view/revenue?" + url.Values{"sort": {model.ColAvg}, "dir": {"desc"}, "page_size": {"2"}}.Encode()
	view := decode(t, env.do(t, http.MethodGet, path, id, nil))["view"].(map[string]any)
	rows := view["rows"].([]any)
	if view["totalPages"] != 2.0 || len(rows) != 2 || rows[0].(map[string]any)["key"] != "KH04" {
		t.Fatalf("view: %v", view)
	}

	view = decode(t, env.do(t, http.MethodGet, "/api/view/revenue?page_size=2&page=9", id, nil))["view"].(map[string]any)
	if view["page"] != 2.0 || len(view["rows"].([]any)) != 1 {
		t.Fatalf("clamped view: %v", view)
	}

	w := env.do(t, http.MethodGet, "/api/view/revenue?page=abc", id, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad page status: %d", w.Code)
	}
}

func TestView_RejectsHugePageSize(t *testing.T) {
	env := newTestEnv(t, nil)
	id, _ := env.loadFull(t)

	for _, size := range []string{strconv.Itoa(math.MaxInt), strconv.Itoa(table.MaxPageSize + 1)} {
		w := env.do(t, http.MethodGet, "/api/view/revenue?page_size="+size, id, nil)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("page_size=%s status: %d", size, w.Code)
		}
	}

	w := env.do(t, http.MethodGet, "/api/view/revenue?page_size="+strconv.Itoa(table.MaxPageSize), id, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("max page_size status: %d", w.Code)
	}
	view := decode(t, w)["view"].(map[string]any)
	if view["totalPages"] != 1.0 || view["page"] != 1.0 {
		t.Fatalf("view: %v", view)
	}
}

func TestRecalculate_OnlyEditedRowChanges(t *testing.T) {
	env := newTestEnv(t, nil)
	id, resp := env.loadFull(t)
	before := detailByCode(t, resp["detailRows"])

	body := `{"chi_tiet_changes":[{"rowKey":"KH01","column":"Freq_Chia","new_value":3}]}`
	w := env.do(t, http.MethodPost, "/api/recalculate", id, bytes.NewBufferString(body))
	if w.Code != http.StatusOK {
		t.Fatalf("recalc status: %d body=%s", w.Code, w.Body.String())
	}
	out := decode(t, w)
	after := detailByCode(t, out["detailRows"])

	kh01 := after["KH01"]
	if kh01[model.ColFreqSplit] != "F3" || kh01[model.ColFreqCheck] != model.CheckError || kh01[model.ColCallsMonth] != 3.0 {
		t.Fatalf("KH01 after edit: %v", kh01)
	}
	for _, code := range []string{"KH02", "KH03"} {
		if !reflect.DeepEqual(before[code], after[code]) {
			t.Fatalf("%s changed:\nbefore=%v\nafter=%v", code, before[code], after[code])
		}
	}
	if out["version"] != 2.0 {
		t.Fatalf("version: %v", out["version"])
	}

	// 同样的修改再提交一次，结果不变
	w = env.do(t, http.MethodPost, "/api/recalculate", id, bytes.NewBufferString(body))
	again := detailByCode(t, decode(t, w)["detailRows"])
	if !reflect.DeepEqual(after, again) {
		t.Fatalf("recalculation not idempotent")
	}

	n, err := env.store.CountRecalcLogs(context.Background(), id, store.ImportSuccess)
	if err != nil || n != 2 {
		t.Fatalf("recalc logs: %d %v", n, err)
	}
}

func TestRecalculate_InvalidChangeKeepsState(t *testing.T) {
	env := newTestEnv(t, nil)
	id, _ := env.loadFull(t)

	cases := []string{
		`{"chi_tiet_changes":[{"rowKey":"KH01","column":"Freq_Chia","new_value":"abc"}]}`,
		`{"chi_tiet_changes":[{"rowKey":"KH01","column":"Freq_Chia","new_value":-1}]}`,
		`{"chi_tiet_changes":[{"rowKey":"KH01","column":"Freq_Chia","new_value":"-2"}]}`,
		`{"chi_tiet_changes":[{"rowKey":"KH99","column":"Freq_Chia","new_value":2}]}`,
		`{"chi_tiet_changes":[{"rowKey":"KH01","column":"MaTuyen","new_value":"R09"}]}`,
		`{"master_params":{"Unknown":1}}`,
		`not json`,
	}
	for _, body := range cases {
		w := env.do(t, http.MethodPost, "/api/recalculate", id, bytes.NewBufferString(body))
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: status %d", body, w.Code)
		}
		if resp := decode(t, w); resp["success"] != false || resp["error"] == "" {
			t.Fatalf("error body: %v", resp)
		}
	}

	s, _ := env.h.sessions.Get(id)
	if s.Version() != 1 {
		t.Fatalf("invalid change committed: version %d", s.Version())
	}
	wb, err := s.Workbook()
	if err != nil {
		t.Fatalf("workbook: %v", err)
	}
	ds, err := wb.Dataset(model.SheetRouteDetail)
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	if idx := ds.FindRows("KH01"); len(idx) != 1 || ds.Rows[idx[0]].Detail.FreqSplit == "" {
		t.Fatalf("KH01 frequency cleared by a rejected change")
	}
	n, _ := env.store.CountRecalcLogs(context.Background(), id, store.ImportFailed)
	if n != len(cases)-1 {
		t.Fatalf("failed recalc logs: %d", n)
	}
}

func TestStaleRequestRejected(t *testing.T) {
	env := newTestEnv(t, nil)
	id, _ := env.loadFull(t)

	body := `{"master_params":{"DS_Nguong_F2":900000}}`
	w := env.do(t, http.MethodPost, "/api/recalculate", id, bytes.NewBufferString(body), SeqHeader, "5")
	if w.Code != http.StatusOK {
		t.Fatalf("seq 5: %d body=%s", w.Code, w.Body.String())
	}
	w = env.do(t, http.MethodPost, "/api/recalculate", id, bytes.NewBufferString(body), SeqHeader, "3")
	if w.Code != http.StatusConflict {
		t.Fatalf("seq 3: want 409 got %d", w.Code)
	}

	w = env.do(t, http.MethodGet, "/api/view/revenue?seq=7", id, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("view seq 7: %d", w.Code)
	}
	w = env.do(t, http.MethodGet, "/api/view/revenue?seq=6", id, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("view seq 6: want 409 got %d", w.Code)
	}
	w = env.do(t, http.MethodGet, "/api/view/revenue", id, nil, SeqHeader, "x")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad seq: %d", w.Code)
	}
}

func TestUpload_InvalidKeepsPreviousState(t *testing.T) {
	env := newTestEnv(t, nil)
	id, _ := env.loadFull(t)

	w := env.upload(t, id, upload{field: "files", filename: "notes.txt", data: []byte("hello")})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("invalid upload: %d body=%s", w.Code, w.Body.String())
	}
	sheets := decode(t, env.do(t, http.MethodGet, "/api/sheets", id, nil))
	if sheets["version"] != 1.0 || len(sheets["sheets"].([]any)) != 4 {
		t.Fatalf("previous state lost: %v", sheets)
	}

	w = env.upload(t, "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty upload: %d", w.Code)
	}
	if n := env.h.sessions.Len(); n != 1 {
		t.Fatalf("failed upload leaked a session: %d", n)
	}
}

func TestUpload_NamedFieldAndMissingSheet(t *testing.T) {
	env := newTestEnv(t, nil)

	csv := []byte("CustCode,T-3,T-2,T-1,T\nKH01,100,200,300,400\n")
	w := env.upload(t, "", upload{field: "doanhso", filename: "upload.csv", data: csv})
	if w.Code != http.StatusOK {
		t.Fatalf("upload: %d body=%s", w.Code, w.Body.String())
	}
	resp := decode(t, w)
	id := resp["sessionId"].(string)
	if _, ok := resp["detailRows"]; ok {
		t.Fatalf("unexpected detail rows")
	}
	if cookie := w.Result().Cookies(); len(cookie) == 0 || cookie[0].Name != SessionCookie || cookie[0].Value != id {
		t.Fatalf("session cookie: %v", cookie)
	}

	for path, want := range map[string]int{
		"/api/data/revenue":   http.StatusOK,
		"/api/data/customers": http.StatusNotFound,
		"/api/data/bogus":     http.StatusNotFound,
		"/api/map_data":       http.StatusNotFound,
	} {
		if w := env.do(t, http.MethodGet, path, id, nil); w.Code != want {
			t.Fatalf("%s: want %d got %d", path, want, w.Code)
		}
	}
	if w := env.do(t, http.MethodGet, "/api/data/revenue", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("no session: %d", w.Code)
	}
}

func TestUpload_RateLimited(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.AppConfig) {
		cfg.Upload.RatePerMinute = 0.001
		cfg.Upload.Burst = 1
	})
	env.loadFull(t)
	w := env.upload(t, "", upload{field: "files", filename: "data.xlsx", data: testfixture.Full(t)})
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("want 429 got %d", w.Code)
	}
}

func TestMapData(t *testing.T) {
	env := newTestEnv(t, nil)
	id, _ := env.loadFull(t)

	resp := decode(t, env.do(t, http.MethodGet, "/api/map_data", id, nil))
	points := resp["data"].([]any)
	if len(points) != 2 {
		t.Fatalf("points: %v", points)
	}
	first := points[0].(map[string]any)
	if first["code"] != "KH01" || first["class"] != "High" || first["color"] != "#f39c12" || first["size"] != 11.0 {
		t.Fatalf("KH01 point: %v", first)
	}
	center := resp["center"].([]any)
	if lat := center[0].(float64); lat < 9.184 || lat > 9.186 {
		t.Fatalf("center: %v", center)
	}

	q := url.Values{model.ColDistrict: {"Q2"}}
	resp = decode(t, env.do(t, http.MethodGet, "/api/map_data?"+q.Encode(), id, nil))
	if len(resp["data"].([]any)) != 1 {
		t.Fatalf("filtered map: %v", resp["data"])
	}
}

func TestMapData_UsesScopedWorkbook(t *testing.T) {
	env := newTestEnv(t, nil)
	id, _ := env.loadFull(t)

	s, _ := env.h.sessions.Get(id)
	current, err := s.Workbook()
	if err != nil {
		t.Fatalf("workbook: %v", err)
	}
	snapshot := current.Clone()
	snapshot.Version = current.Version + 100
	rev, err := snapshot.Dataset(model.SheetRevenue)
	if err != nil {
		t.Fatalf("revenue: %v", err)
	}
	for i := range rev.Rows {
		if rev.Rows[i].Revenue != nil && rev.Rows[i].Revenue.CustCode == "KH01" {
			rev.Rows[i].Revenue.Average = 0
		}
	}
	customers, err := snapshot.Dataset(model.SheetCustomers)
	if err != nil {
		t.Fatalf("customers: %v", err)
	}

	sc := &sheetScope{sess: s, sheet: model.SheetCustomers, version: snapshot.Version, wb: snapshot, ds: customers}
	payload := env.h.buildMap(sc)
	found := false
	for _, p := range payload.Points {
		if p.Code != "KH01" {
			continue
		}
		found = true
		if p.Revenue != 0 || p.Class == "High" {
			t.Fatalf("KH01 read from the live workbook: %+v", p)
		}
	}
	if !found {
		t.Fatalf("KH01 missing: %+v", payload.Points)
	}
}

func TestExportAndDownload(t *testing.T) {
	env := newTestEnv(t, nil)
	id, _ := env.loadFull(t)

	w := env.do(t, http.MethodGet, "/api/download", id, nil)
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != xlsxContentType || w.Body.Len() == 0 {
		t.Fatalf("direct download: %d %s", w.Code, w.Header().Get("Content-Type"))
	}

	resp := decode(t, env.do(t, http.MethodPost, "/api/export", id, nil))
	link, _ := resp["downloadUrl"].(string)
	if link == "" {
		t.Fatalf("missing download url: %v", resp)
	}
	w = env.do(t, http.MethodGet, link, "", nil)
	if w.Code != http.StatusOK || w.Body.Len() == 0 {
		t.Fatalf("token download: %d", w.Code)
	}
	w = env.do(t, http.MethodGet, link, "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("token reused: %d", w.Code)
	}
}

func TestImportsAndHealth(t *testing.T) {
	env := newTestEnv(t, nil)
	id, _ := env.loadFull(t)

	resp := decode(t, env.do(t, http.MethodGet, "/api/imports", id, nil))
	imports := resp["imports"].([]any)
	if len(imports) != 1 {
		t.Fatalf("imports: %v", imports)
	}
	entry := imports[0].(map[string]any)
	if entry["status"] != store.ImportSuccess || len(entry["sheets"].([]any)) != 5 {
		t.Fatalf("import entry: %v", entry)
	}

	health := decode(t, env.do(t, http.MethodGet, "/api/health", "", nil))
	if health["status"] != "ok" || health["sessions"] != 1.0 || health["version"] != "test" {
		t.Fatalf("health: %v", health)
	}
}

func TestStatusFor(t *testing.T) {
	t.Parallel()

	cases := map[error]int{
		model.ErrInvalidUpload:      http.StatusBadRequest,
		model.ErrInvalidChange:      http.StatusBadRequest,
		model.ErrNoSession:          http.StatusNotFound,
		model.ErrSheetNotLoaded:     http.StatusNotFound,
		model.ErrUnknownSheet:       http.StatusNotFound,
		model.ErrStaleRequest:       http.StatusConflict,
		context.DeadlineExceeded:    http.StatusGatewayTimeout,
		errRateLimited:              http.StatusTooManyRequests,
		errors.New("disk exploded"): http.StatusInternalServerError,
	}
	for err, want := range cases {
		if got := statusFor(err); got != want {
			t.Fatalf("%v: want %d got %d", err, want, got)
		}
	}
}

// sseEvents 解析 `data: {json}` 事件
func sseEvents(t *testing.T, w *httptest.ResponseRecorder) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, chunk := range strings.Split(w.Body.String(), "\n\n") {
		payload, ok := strings.CutPrefix(strings.TrimSpace(chunk), "data: ")
		if !ok {
			continue
		}
		var ev map[string]any
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			t.Fatalf("decode event %q: %v", payload, err)
		}
		out = append(out, ev)
	}
	return out
}

func TestExportStream_ProgressThenLink(t *testing.T) {
	env := newTestEnv(t, nil)
	id, _ := env.loadFull(t)

	w := env.do(t, http.MethodPost, "/api/export/stream", id, nil)
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "text/event-stream" {
		t.Fatalf("stream: %d %s", w.Code, w.Header().Get("Content-Type"))
	}
	events := sseEvents(t, w)
	if len(events) < 3 || events[0]["type"] != "start" {
		t.Fatalf("events: %v", events)
	}

	last := -1.0
	for _, ev := range events[1 : len(events)-1] {
		data := ev["data"].(map[string]any)
		if ev["type"] != "progress" || data["percent"].(float64) <= last {
			t.Fatalf("progress event: %v", ev)
		}
		last = data["percent"].(float64)
	}
	if last != 100 {
		t.Fatalf("last progress: %v", last)
	}

	done := events[len(events)-1]
	data := done["data"].(map[string]any)
	link, _ := data["downloadUrl"].(string)
	if done["type"] != "done" || link == "" || data["percent"] != 100.0 {
		t.Fatalf("done event: %v", done)
	}
	w = env.do(t, http.MethodGet, link, "", nil)
	if w.Code != http.StatusOK || w.Body.Len() == 0 {
		t.Fatalf("token download: %d", w.Code)
	}
}

func TestExportStream_NoSession(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/api/export/stream", "missing", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status: %d", w.Code)
	}
}
