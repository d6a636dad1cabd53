package explorer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/time/rate"

	"github.com/feral-file/prize-indexer/internal/adapter"
	"github.com/feral-file/prize-indexer/internal/domain"
)

// PAGE_SIZE is the maximum number of logs the explorer returns per page
const PAGE_SIZE = 1000

const (
	messageOK       = "OK"
	messageNoRecord = "No records found"
)

// Client defines the interface for block explorer operations to enable mocking
//
//go:generate mockgen -source=client.go -destination=../../mocks/explorer_client.go -package=mocks -mock_names=Client=MockExplorerClient
type Client interface {
	// QueryLogs returns the logs of contract with topic0 == topic from fromBlock to the latest block
	QueryLogs(ctx context.Context, contract common.Address, topic common.Hash, fromBlock uint64) ([]types.Log, error)

	// DeployedBlock returns the lowest block carrying a log with topic0 == topic for contract
	DeployedBlock(ctx context.Context, contract common.Address, topic common.Hash) (uint64, error)
}

// envelope is the explorer response wrapper
type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// explorerLog is a log entry as returned by the explorer logs API
type explorerLog struct {
	Address         common.Address `json:"address"`
	Topics          []common.Hash  `json:"topics"`
	Data            hexutil.Bytes  `json:"data"`
	BlockNumber     hexutil.Uint64 `json:"blockNumber"`
	TransactionHash common.Hash    `json:"transactionHash"`
	LogIndex        string         `json:"logIndex"`
}

type explorerClient struct {
	httpClient adapter.HTTPClient
	json       adapter.JSON
	limiter    *rate.Limiter
	apiURL     string
	apiKey     string
}

// NewClient creates a new explorer client for an etherscan-compatible API.
// Requests are spaced to at most requestsPerSecond; zero disables the limit.
func NewClient(httpClient adapter.HTTPClient, json adapter.JSON, apiURL, apiKey string, requestsPerSecond float64) Client {
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}

	return &explorerClient{
		httpClient: httpClient,
		json:       json,
		limiter:    rate.NewLimiter(limit, 1),
		apiURL:     apiURL,
		apiKey:     apiKey,
	}
}

// QueryLogs pages through the explorer logs API.
// The explorer caps page*offset, so after a full page the scan restarts at that page's last block;
// entries repeated across the restart are dropped by transaction hash and log index.
func (c *explorerClient) QueryLogs(ctx context.Context, contract common.Address, topic common.Hash, fromBlock uint64) ([]types.Log, error) {
	var logs []types.Log
	seen := make(map[string]struct{})

	for page := 1; ; {
		batch, err := c.getLogs(ctx, contract, topic, fromBlock, page)
		if err != nil {
			return nil, err
		}

		for _, l := range batch {
			id := l.TransactionHash.Hex() + "/" + l.LogIndex
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}

			logs = append(logs, types.Log{
				Address:     l.Address,
				Topics:      l.Topics,
				Data:        l.Data,
				BlockNumber: uint64(l.BlockNumber),
				TxHash:      l.TransactionHash,
			})
		}

		if len(batch) < PAGE_SIZE {
			return logs, nil
		}

		// a full page inside one block cannot move the window forward
		if last := uint64(batch[len(batch)-1].BlockNumber); last > fromBlock {
			fromBlock, page = last, 1
		} else {
			page++
		}
	}
}

// DeployedBlock returns the minimum block number among the matching logs
func (c *explorerClient) DeployedBlock(ctx context.Context, contract common.Address, topic common.Hash) (uint64, error) {
	logs, err := c.getLogs(ctx, contract, topic, 1, 1)
	if err != nil {
		return 0, err
	}
	if len(logs) == 0 {
		return 0, fmt.Errorf("%w: no %s logs for %s", domain.ErrUpstreamUnavailable, topic.Hex(), contract.Hex())
	}

	block := uint64(logs[0].BlockNumber)
	for _, l := range logs[1:] {
		block = min(block, uint64(l.BlockNumber))
	}
	return block, nil
}

func (c *explorerClient) getLogs(ctx context.Context, contract common.Address, topic common.Hash, fromBlock uint64, page int) ([]explorerLog, error) {
	query := url.Values{}
	query.Set("module", "logs")
	query.Set("action", "getLogs")
	query.Set("fromBlock", strconv.FormatUint(fromBlock, 10))
	query.Set("toBlock", "latest")
	query.Set("address", contract.Hex())
	query.Set("topic0", topic.Hex())
	query.Set("page", strconv.Itoa(page))
	query.Set("offset", strconv.Itoa(PAGE_SIZE))
	query.Set("apiKey", c.apiKey)

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: explorer rate limiter: %v", domain.ErrUpstreamUnavailable, err)
	}

	respBody, err := c.httpClient.GetBytes(ctx, c.apiURL+"?"+query.Encode())
	if err != nil {
		return nil, fmt.Errorf("%w: explorer getLogs: %v", domain.ErrUpstreamUnavailable, err)
	}

	var resp envelope
	if err := c.json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("%w: explorer response: %v", domain.ErrDecodeFailure, err)
	}

	switch resp.Message {
	case messageOK:
	case messageNoRecord:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: explorer returned %q: %s", domain.ErrUpstreamUnavailable, resp.Message, string(resp.Result))
	}

	var logs []explorerLog
	if err := c.json.Unmarshal(resp.Result, &logs); err != nil {
		return nil, fmt.Errorf("%w: explorer logs: %v", domain.ErrDecodeFailure, err)
	}
	return logs, nil
}
