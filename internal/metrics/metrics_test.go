package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordFSOp(t *testing.T) {
	before := testutil.ToFloat64(FSOps("read", "error"))
	RecordFSOp("read", time.Millisecond, errors.New("boom"))
	RecordFSOp("read", time.Millisecond, nil)

	if got := testutil.ToFloat64(FSOps("read", "error")) - before; got != 1 {
		t.Errorf("Expected 1 failed read, got %v", got)
	}
}

func TestRecordSyncPush(t *testing.T) {
	before := testutil.ToFloat64(SyncPushes("content", "success"))
	RecordSyncPush("content", nil)
	if got := testutil.ToFloat64(SyncPushes("content", "success")) - before; got != 1 {
		t.Errorf("Expected 1 push, got %v", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	SetManagedFiles(7)
	RecordRemoteRequest("GET", 200, time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	for _, want := range []string{"wikifs_managed_files 7", `wikifs_remote_requests_total{method="GET",status="200"}`} {
		if !strings.Contains(body, want) {
			t.Errorf("Expected %q in metrics output", want)
		}
	}
}
