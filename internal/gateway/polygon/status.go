// Package polygon 通过官方 polygon client-go 的 marketstatus 接口判断美股交易时段。
package polygon

import (
	"context"
	"fmt"
	"strings"

	"quorum/internal/logger"
	"quorum/internal/market"

	polygonrest "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"
)

var polygonLog = logger.Named("polygon")

// StatusOracle 实现 market.StatusOracle。
//   - nasdaq 与 nyse 同时 open 为 OPEN
//   - earlyHours 为 true 时为 EARLY_HOURS
//   - 其余为 CLOSED；请求失败为 ERROR
type StatusOracle struct {
	client *polygonrest.Client
}

func NewStatusOracle(baseURL, apiKey string) (*StatusOracle, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("market.polygon.api_key 不能为空")
	}
	c := polygonrest.New(apiKey)
	if baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/"); baseURL != "" {
		c.HTTP.SetBaseURL(baseURL)
	}
	// 协调循环每轮都会重新轮询，不需要 SDK 内部重试。
	c.HTTP.SetRetryCount(0)
	return &StatusOracle{client: c}, nil
}

func (o *StatusOracle) Poll(ctx context.Context) (market.Status, error) {
	res, err := o.client.GetMarketStatus(ctx)
	if err != nil {
		polygonLog.Errorf("market status request failed: %v", err)
		return market.StatusError, err
	}
	return statusOf(res), nil
}

func statusOf(res *models.GetMarketStatusResponse) market.Status {
	if res == nil {
		return market.StatusClosed
	}
	if res.Exchanges["nasdaq"] == "open" && res.Exchanges["nyse"] == "open" {
		return market.StatusOpen
	}
	if res.EarlyHours {
		return market.StatusEarlyHours
	}
	return market.StatusClosed
}
