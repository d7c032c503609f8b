package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/stakemate/stakemate/pkg/types"
)

// Client talks to the daemon's HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
}

// GetClient builds a Client pointed at the configured daemon endpoint.
func GetClient() *Client {
	return &Client{
		baseURL: GetAPIEndpoint(),
		// Mutations block until the transaction is mined, so the
		// timeout must cover confirmation latency.
		http: &http.Client{Timeout: 5 * time.Minute},
	}
}

// GetClientOrDie verifies the daemon is reachable or exits with a styled
// error.
func GetClientOrDie() *Client {
	c := GetClient()
	if _, err := c.Status(); err != nil {
		Error(fmt.Sprintf("cannot reach daemon at %s: %v", c.baseURL, err))
		Info("start it with: stakemate-daemon")
		os.Exit(1)
	}
	return c
}

// StatusInfo is the daemon status response.
type StatusInfo struct {
	Connected bool   `json:"connected"`
	Signer    bool   `json:"signer"`
	Ready     bool   `json:"ready"`
	Network   string `json:"network,omitempty"`
	Address   string `json:"address,omitempty"`
	Incentive string `json:"incentive,omitempty"`
}

// PositionList is the daemon positions response.
type PositionList struct {
	Ready     bool             `json:"ready"`
	Positions []types.Position `json:"positions"`
}

// IncentiveList is the daemon incentives response.
type IncentiveList struct {
	Incentives []types.Incentive `json:"incentives"`
	Current    string            `json:"current,omitempty"`
}

// RewardInfo is the daemon rewards response.
type RewardInfo struct {
	Ready     bool             `json:"ready"`
	Claimable string           `json:"claimable,omitempty"`
	Token     *RewardTokenInfo `json:"token,omitempty"`
}

// RewardTokenInfo is the reward token metadata and wallet balance.
type RewardTokenInfo struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
	Balance  string `json:"balance"`
}

// ConnectRequest selects the network and account for a new session.
type ConnectRequest struct {
	Network      string `json:"network"`
	Address      string `json:"address,omitempty"`
	KeystoreFile string `json:"keystore_file,omitempty"`
	Passphrase   string `json:"passphrase,omitempty"`
}

func (c *Client) Status() (*StatusInfo, error) {
	var status StatusInfo
	if err := c.get("/v1/status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *Client) Positions() (*PositionList, error) {
	var list PositionList
	if err := c.get("/v1/positions", &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func (c *Client) Incentives() (*IncentiveList, error) {
	var list IncentiveList
	if err := c.get("/v1/incentives", &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func (c *Client) SetIncentive(id string) error {
	return c.post("/v1/incentives/current", map[string]string{"id": id}, nil)
}

func (c *Client) Rewards() (*RewardInfo, error) {
	var info RewardInfo
	if err := c.get("/v1/rewards", &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) Claim() error {
	return c.post("/v1/rewards/claim", nil, nil)
}

func (c *Client) StakeStep(tokenID uint64) (types.StakeStep, error) {
	var resp struct {
		Step types.StakeStep `json:"step"`
	}
	if err := c.get(fmt.Sprintf("/v1/positions/%d/stake-step", tokenID), &resp); err != nil {
		return "", err
	}
	return resp.Step, nil
}

func (c *Client) WithdrawStep(tokenID uint64) (types.WithdrawStep, error) {
	var resp struct {
		Step types.WithdrawStep `json:"step"`
	}
	if err := c.get(fmt.Sprintf("/v1/positions/%d/withdraw-step", tokenID), &resp); err != nil {
		return "", err
	}
	return resp.Step, nil
}

func (c *Client) PositionReward(tokenID uint64) (*types.RewardResult, error) {
	var result types.RewardResult
	if err := c.get(fmt.Sprintf("/v1/positions/%d/reward", tokenID), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// PositionOp runs one mutation step on a token. Valid ops are approve,
// transfer, stake, unstake and withdraw.
func (c *Client) PositionOp(tokenID uint64, op string) error {
	return c.post(fmt.Sprintf("/v1/positions/%d/%s", tokenID, op), nil, nil)
}

func (c *Client) Connect(req ConnectRequest) (*StatusInfo, error) {
	var status StatusInfo
	if err := c.post("/v1/connect", req, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *Client) Disconnect() error {
	return c.post("/v1/disconnect", nil, nil)
}

func (c *Client) Reload() error {
	return c.post("/v1/reload", nil, nil)
}

func (c *Client) get(path string, out interface{}) error {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func (c *Client) post(path string, body interface{}, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := c.http.Post(c.baseURL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out interface{}) error {
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(resp.Body)
		if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("%s", apiErr.Error)
		}
		return fmt.Errorf("daemon returned %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
