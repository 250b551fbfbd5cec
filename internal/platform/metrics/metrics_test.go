package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func scrape(t *testing.T) string {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := Handler()(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	return rec.Body.String()
}

func TestHandler_ServesRequestCounter(t *testing.T) {
	ObserveRequest(http.MethodGet, "/health", 200, time.Millisecond)

	body := scrape(t)
	if !strings.Contains(body, `pankbase_http_requests_total{code="200",method="GET",route="/health"}`) {
		t.Error("expected request counter in exposition")
	}
}

func TestObserveReload_LabelsStatus(t *testing.T) {
	ObserveReload(errors.New("boom"), time.Millisecond)
	ObserveReload(nil, time.Millisecond)

	body := scrape(t)
	for _, want := range []string{
		`pankbase_dataset_reloads_total{status="error"}`,
		`pankbase_dataset_reloads_total{status="success"}`,
		"pankbase_dataset_load_duration_seconds_count",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in exposition", want)
		}
	}
}

func TestSetSnapshot(t *testing.T) {
	SetSnapshot(7, 3, 4, 2, 1)

	body := scrape(t)
	if !strings.Contains(body, "pankbase_dataset_snapshot_version 7") {
		t.Error("expected snapshot version 7")
	}
	if !strings.Contains(body, `pankbase_dataset_rows{table="biosamples"} 4`) {
		t.Error("expected 4 biosample rows")
	}
}

func TestObserveAssociation(t *testing.T) {
	ObserveAssociation("kruskal_wallis", 3, 2, time.Millisecond)

	body := scrape(t)
	if !strings.Contains(body, `pankbase_association_pairs_total{method="kruskal_wallis",status="failed"} 2`) {
		t.Error("expected failed pair count")
	}
	if !strings.Contains(body, `pankbase_association_pairs_total{method="kruskal_wallis",status="ok"} 3`) {
		t.Error("expected ok pair count")
	}
}

func TestObserveFetch(t *testing.T) {
	ObserveFetch("expression", nil)
	IncRateLimited()

	body := scrape(t)
	if !strings.Contains(body, `pankbase_integration_fetches_total{source="expression",status="ok"} 1`) {
		t.Error("expected fetch counter")
	}
	if !strings.Contains(body, "pankbase_http_rate_limited_total") {
		t.Error("expected rate limit counter")
	}
}
