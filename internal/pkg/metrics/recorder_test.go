package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"elo-sync/internal/domain/rank"
	"elo-sync/internal/usecase/rating"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorder_Observe(t *testing.T) {
	r := New(rank.Standard(), func() int { return 3 })

	r.Observe(rating.Change{Rating: 1850, Source: rating.SourceLocal})
	r.Observe(rating.Change{Rating: 1875, Source: rating.SourceLocal})
	r.Observe(rating.Change{Rating: 1300, Source: rating.SourceRemote})

	if got := testutil.ToFloat64(r.changes.WithLabelValues("local")); got != 2 {
		t.Fatalf("local changes=%v", got)
	}
	if got := testutil.ToFloat64(r.changes.WithLabelValues("remote")); got != 1 {
		t.Fatalf("remote changes=%v", got)
	}
	if got := testutil.ToFloat64(r.rating); got != 1300 {
		t.Fatalf("rating=%v", got)
	}
	if got := testutil.ToFloat64(r.tier.WithLabelValues("beginner")); got != 1 {
		t.Fatalf("beginner=%v", got)
	}
	if got := testutil.ToFloat64(r.tier.WithLabelValues("advanced")); got != 0 {
		t.Fatalf("advanced=%v", got)
	}
	if got := testutil.ToFloat64(r.clients); got != 3 {
		t.Fatalf("clients=%v", got)
	}
}

func TestRecorder_Handler(t *testing.T) {
	r := New(rank.Compact(), nil)
	r.Observe(rating.Change{Rating: 2500, Source: rating.SourceRefresh})

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	for _, want := range []string{
		`elo_rating 2500`,
		`elo_rating_changes_total{source="refresh"} 1`,
		`elo_rank_tier{tier="advanced"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
	if strings.Contains(string(body), "elo_ws_clients") {
		t.Fatalf("client gauge registered without a source")
	}
}
