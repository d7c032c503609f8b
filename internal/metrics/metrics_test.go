package metrics

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
)

func findMetric(t *testing.T, c *Collector, name string) *dto.MetricFamily {
	t.Helper()
	families, err := c.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func TestObserveReload(t *testing.T) {
	c := NewCollector()
	c.ObserveReload(500*time.Millisecond, nil)
	c.ObserveReload(time.Second, fmt.Errorf("boom"))

	hist := findMetric(t, c, "stakemate_reload_duration_seconds")
	if hist == nil {
		t.Fatal("missing reload histogram")
	}
	if hist.Metric[0].Histogram.GetSampleCount() != 1 {
		t.Errorf("expected 1 successful reload sample, got %d", hist.Metric[0].Histogram.GetSampleCount())
	}

	failures := findMetric(t, c, "stakemate_reload_failures_total")
	if failures == nil || failures.Metric[0].Counter.GetValue() != 1 {
		t.Error("expected 1 reload failure")
	}
}

func TestSetPositions(t *testing.T) {
	c := NewCollector()
	c.SetPositions(5, 2)

	total := findMetric(t, c, "stakemate_position_count")
	if total == nil || total.Metric[0].Gauge.GetValue() != 5 {
		t.Error("expected position count 5")
	}
	staked := findMetric(t, c, "stakemate_staked_position_count")
	if staked == nil || staked.Metric[0].Gauge.GetValue() != 2 {
		t.Error("expected staked count 2")
	}
}

func TestRecordLedgerEvent(t *testing.T) {
	c := NewCollector()
	c.RecordLedgerEvent("TokenStaked")
	c.RecordLedgerEvent("TokenStaked")
	c.RecordLedgerEvent("RewardClaimed")

	events := findMetric(t, c, "stakemate_ledger_events_total")
	if events == nil {
		t.Fatal("missing events counter")
	}
	byLabel := map[string]float64{}
	for _, m := range events.Metric {
		byLabel[m.Label[0].GetValue()] = m.Counter.GetValue()
	}
	if byLabel["TokenStaked"] != 2 || byLabel["RewardClaimed"] != 1 {
		t.Errorf("unexpected event counts: %v", byLabel)
	}
}

func TestHandlerServesExposition(t *testing.T) {
	c := NewCollector()
	c.SetClaimable(42)

	server := httptest.NewServer(c.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(string(body), "stakemate_claimable_reward_wei 42") {
		t.Error("expected claimable gauge in exposition output")
	}

	goroutines := findMetric(t, c, "stakemate_goroutine_count")
	if goroutines == nil || goroutines.Metric[0].Gauge.GetValue() <= 0 {
		t.Error("expected goroutine gauge refreshed on scrape")
	}
}
