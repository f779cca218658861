package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/view/:sheet", "200"))
	RecordAPIRequest("GET", "/api/view/:sheet", 200, 3*time.Millisecond)
	after := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/view/:sheet", "200"))
	if after-before != 1 {
		t.Fatalf("want +1 got %v", after-before)
	}
}

func TestRecordUpload(t *testing.T) {
	okBefore := testutil.ToFloat64(UploadsTotal.WithLabelValues("success"))
	errBefore := testutil.ToFloat64(UploadsTotal.WithLabelValues("error"))
	rowsBefore := testutil.ToFloat64(UploadRows)

	RecordUpload(42, time.Second, nil)
	RecordUpload(10, time.Second, errors.New("bad file"))

	if got := testutil.ToFloat64(UploadsTotal.WithLabelValues("success")) - okBefore; got != 1 {
		t.Fatalf("success: %v", got)
	}
	if got := testutil.ToFloat64(UploadsTotal.WithLabelValues("error")) - errBefore; got != 1 {
		t.Fatalf("error: %v", got)
	}
	if got := testutil.ToFloat64(UploadRows) - rowsBefore; got != 42 {
		t.Fatalf("rows: %v", got)
	}
}

func TestRecordRecalculationAndCache(t *testing.T) {
	before := testutil.ToFloat64(RecalculationsTotal.WithLabelValues("error"))
	RecordRecalculation(time.Millisecond, errors.New("invalid"))
	if got := testutil.ToFloat64(RecalculationsTotal.WithLabelValues("error")) - before; got != 1 {
		t.Fatalf("recalc error: %v", got)
	}

	hits := testutil.ToFloat64(ViewCacheHits)
	misses := testutil.ToFloat64(ViewCacheMisses)
	RecordViewCache(true)
	RecordViewCache(false)
	RecordViewCache(false)
	if testutil.ToFloat64(ViewCacheHits)-hits != 1 || testutil.ToFloat64(ViewCacheMisses)-misses != 2 {
		t.Fatalf("cache counters not updated")
	}
}
