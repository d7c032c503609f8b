package incentives

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stakemate/stakemate/internal/config"
)

func staticNetConfig() *config.NetworkConfig {
	return &config.NetworkConfig{
		ChainID: 4,
		Incentives: []config.IncentiveConfig{
			{
				ID:          "0xaaa",
				RewardToken: "0x3333333333333333333333333333333333333333",
				Pool:        "0x4444444444444444444444444444444444444444",
				StartTime:   1_600_000_000,
				EndTime:     1_650_000_000,
				Refundee:    "0x1111111111111111111111111111111111111111",
				Reward:      "1000000",
				Ended:       false,
			},
			{
				ID:          "0xbbb",
				RewardToken: "0x3333333333333333333333333333333333333333",
				Pool:        "0x4444444444444444444444444444444444444444",
				StartTime:   1_650_000_000,
				EndTime:     9_900_000_000,
				Refundee:    "0x1111111111111111111111111111111111111111",
				Reward:      "2000000",
			},
		},
	}
}

func TestLoadOrdersNewestEndingFirst(t *testing.T) {
	d := NewDirectory()
	if err := d.Load(context.Background(), staticNetConfig()); err != nil {
		t.Fatalf("load: %v", err)
	}

	list := d.List()
	if len(list) != 2 {
		t.Fatalf("expected 2 incentives, got %d", len(list))
	}
	if list[0].ID != "0xbbb" {
		t.Errorf("expected newest-ending first, got %s", list[0].ID)
	}

	current, ok := d.Current()
	if !ok || current.ID != "0xbbb" {
		t.Errorf("expected current to default to first entry, got %+v", current)
	}
}

func TestLoadFlagsPastIncentivesEnded(t *testing.T) {
	d := NewDirectory()
	if err := d.Load(context.Background(), staticNetConfig()); err != nil {
		t.Fatalf("load: %v", err)
	}

	inc, ok := d.ByID("0xaaa")
	if !ok {
		t.Fatal("missing incentive 0xaaa")
	}
	if !inc.Ended {
		t.Error("incentive past its end time must be flagged ended")
	}
	inc, _ = d.ByID("0xbbb")
	if inc.Ended {
		t.Error("future incentive must not be flagged ended")
	}
}

func TestSetCurrent(t *testing.T) {
	d := NewDirectory()
	if err := d.Load(context.Background(), staticNetConfig()); err != nil {
		t.Fatalf("load: %v", err)
	}

	if err := d.SetCurrent("0xaaa"); err != nil {
		t.Fatalf("set current: %v", err)
	}
	current, _ := d.Current()
	if current.ID != "0xaaa" {
		t.Errorf("expected 0xaaa selected, got %s", current.ID)
	}

	err := d.SetCurrent("0xdead")
	if !errors.Is(err, ErrUnknownIncentive) {
		t.Errorf("expected ErrUnknownIncentive, got %v", err)
	}
	// Failed selection leaves the previous one in place.
	current, _ = d.Current()
	if current.ID != "0xaaa" {
		t.Errorf("selection changed after failed SetCurrent: %s", current.ID)
	}
}

func TestLoadClearsOnSubgraphFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	d := NewDirectory()
	if err := d.Load(context.Background(), staticNetConfig()); err != nil {
		t.Fatalf("load: %v", err)
	}

	netCfg := staticNetConfig()
	netCfg.SubgraphURL = server.URL
	if err := d.Load(context.Background(), netCfg); err == nil {
		t.Fatal("expected error from failing subgraph")
	}

	if len(d.List()) != 0 {
		t.Error("failed load must clear the directory")
	}
	if _, ok := d.Current(); ok {
		t.Error("failed load must clear the selection")
	}
}

func TestLoadMergesSubgraph(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"incentives":[{
			"id":"0xccc",
			"rewardToken":"0x3333333333333333333333333333333333333333",
			"pool":"0x4444444444444444444444444444444444444444",
			"startTime":"1650000000",
			"endTime":"9990000000",
			"refundee":"0x1111111111111111111111111111111111111111",
			"reward":"3000000",
			"ended":false
		}]}}`))
	}))
	defer server.Close()

	netCfg := staticNetConfig()
	netCfg.SubgraphURL = server.URL

	d := NewDirectory()
	if err := d.Load(context.Background(), netCfg); err != nil {
		t.Fatalf("load: %v", err)
	}

	list := d.List()
	if len(list) != 3 {
		t.Fatalf("expected 3 incentives after merge, got %d", len(list))
	}
	if list[0].ID != "0xccc" {
		t.Errorf("expected indexed incentive first, got %s", list[0].ID)
	}
}

func TestOnChangeFires(t *testing.T) {
	d := NewDirectory()
	changes := 0
	d.OnChange(func() { changes++ })

	if err := d.Load(context.Background(), staticNetConfig()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := d.SetCurrent("0xaaa"); err != nil {
		t.Fatalf("set current: %v", err)
	}
	d.Clear()

	if changes != 3 {
		t.Errorf("expected 3 notifications, got %d", changes)
	}
}
