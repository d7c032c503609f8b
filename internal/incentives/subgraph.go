package incentives

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/stakemate/stakemate/pkg/types"
)

const incentivesQuery = `{
	incentives(orderBy: endTime, orderDirection: desc) {
		id
		rewardToken
		pool
		startTime
		endTime
		refundee
		reward
		ended
	}
}`

// SubgraphClient fetches the incentive list from an indexer endpoint.
type SubgraphClient struct {
	url        string
	httpClient *http.Client
}

// NewSubgraphClient creates a client for one subgraph endpoint.
func NewSubgraphClient(url string) *SubgraphClient {
	return &SubgraphClient{
		url:        url,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type subgraphIncentive struct {
	ID          string `json:"id"`
	RewardToken string `json:"rewardToken"`
	Pool        string `json:"pool"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	Refundee    string `json:"refundee"`
	Reward      string `json:"reward"`
	Ended       bool   `json:"ended"`
}

type subgraphResponse struct {
	Data struct {
		Incentives []subgraphIncentive `json:"incentives"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Incentives queries the subgraph for all known incentives.
func (c *SubgraphClient) Incentives(ctx context.Context) ([]types.Incentive, error) {
	body, err := json.Marshal(map[string]string{"query": incentivesQuery})
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("subgraph request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("subgraph returned status %d", resp.StatusCode)
	}

	var parsed subgraphResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode subgraph response: %w", err)
	}
	if len(parsed.Errors) > 0 {
		return nil, fmt.Errorf("subgraph error: %s", parsed.Errors[0].Message)
	}

	out := make([]types.Incentive, 0, len(parsed.Data.Incentives))
	for _, si := range parsed.Data.Incentives {
		inc, err := si.incentive()
		if err != nil {
			return nil, err
		}
		out = append(out, inc)
	}
	return out, nil
}

func (si subgraphIncentive) incentive() (types.Incentive, error) {
	start, ok := new(big.Int).SetString(si.StartTime, 10)
	if !ok {
		return types.Incentive{}, fmt.Errorf("incentive %s: invalid startTime %q", si.ID, si.StartTime)
	}
	end, ok := new(big.Int).SetString(si.EndTime, 10)
	if !ok {
		return types.Incentive{}, fmt.Errorf("incentive %s: invalid endTime %q", si.ID, si.EndTime)
	}
	reward := big.NewInt(0)
	if si.Reward != "" {
		reward, ok = new(big.Int).SetString(si.Reward, 10)
		if !ok {
			return types.Incentive{}, fmt.Errorf("incentive %s: invalid reward %q", si.ID, si.Reward)
		}
	}
	return types.Incentive{
		ID: si.ID,
		Key: types.IncentiveKey{
			RewardToken: common.HexToAddress(si.RewardToken),
			Pool:        common.HexToAddress(si.Pool),
			StartTime:   start,
			EndTime:     end,
			Refundee:    common.HexToAddress(si.Refundee),
		},
		Reward: reward,
		Ended:  si.Ended,
	}, nil
}
