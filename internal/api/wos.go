package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"giftcode-relay/internal/config"
	"giftcode-relay/internal/constants"
	"giftcode-relay/internal/sign"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"github.com/valyala/fasthttp"
)

// Response sentinels and error codes of the gift code service. These are the
// service's fixed vocabulary, matched exactly.
const (
	MsgPlayerOK = "success"
	MsgRedeemOK = "SUCCESS"
	MsgReceived = "RECEIVED."
	MsgSameType = "SAME TYPE EXCHANGE."
	MsgNotLogin = "NOT LOGIN"

	ErrCodeReceived = 40008
	ErrCodeSameType = 40011
)

// Client talks to the gift code service. Both endpoints take URL-encoded form
// bodies signed with the shared secret and answer JSON.
//
// The claim endpoint only honors a request when the same fid authenticated via
// the player endpoint shortly before, so callers must issue GetPlayer and check
// it succeeded before RedeemCode for that account.
type Client struct {
	secret      string
	playerURL   string
	giftCodeURL string
	client      *fasthttp.Client
	logger      zerolog.Logger
	throttle    *throttle
	retryBase   time.Duration
}

func NewClient(cfg *config.Config, logger zerolog.Logger) *Client {
	return &Client{
		secret:      cfg.Secret,
		playerURL:   cfg.PlayerURL,
		giftCodeURL: cfg.GiftCodeURL,
		client: &fasthttp.Client{
			MaxConnsPerHost:     100,
			ReadTimeout:         constants.ExternalAPITimeout,
			WriteTimeout:        constants.ExternalAPITimeout,
			MaxIdleConnDuration: 1 * time.Minute,
		},
		logger:    logger,
		throttle:  newThrottle(cfg.ThrottleInterval),
		retryBase: constants.RetryBaseDelay,
	}
}

type PlayerResponse struct {
	Code    int             `json:"code"`
	Msg     string          `json:"msg"`
	ErrCode int             `json:"err_code"`
	Data    json.RawMessage `json:"data"`
}

type PlayerData struct {
	Fid         int64  `json:"fid"`
	Nickname    string `json:"nickname"`
	KID         int    `json:"kid"`
	StoveLv     int    `json:"stove_lv"`
	AvatarImage string `json:"avatar_image"`
}

// Player decodes the data payload. The service sends an empty array instead
// of an object when there is no player behind the fid.
func (r *PlayerResponse) Player() (PlayerData, bool) {
	var data PlayerData
	if err := json.Unmarshal(r.Data, &data); err != nil {
		return PlayerData{}, false
	}
	return data, data.Fid != 0
}

type GiftCodeResponse struct {
	Code    int    `json:"code"`
	Msg     string `json:"msg"`
	ErrCode int    `json:"err_code"`
}

// GetPlayer signs {fid, time} and posts it to the player endpoint. Besides
// returning the account's current nickname and furnace level, a successful
// call establishes the server-side session the claim endpoint requires.
func (c *Client) GetPlayer(ctx context.Context, fid int64) (*PlayerResponse, error) {
	params := map[string]any{
		"fid":  strconv.FormatInt(fid, 10),
		"time": strconv.FormatInt(time.Now().Unix(), 10),
	}

	body, err := c.postForm(ctx, c.playerURL, params)
	if err != nil {
		return nil, fmt.Errorf("fetch player %d: %w", fid, err)
	}

	var resp PlayerResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("fetch player %d: decode response: %w", fid, err)
	}
	return &resp, nil
}

// RedeemCode signs {fid, cdk, time} and posts it to the gift code endpoint.
func (c *Client) RedeemCode(ctx context.Context, fid int64, code string) (*GiftCodeResponse, error) {
	params := map[string]any{
		"fid":  strconv.FormatInt(fid, 10),
		"cdk":  code,
		"time": strconv.FormatInt(time.Now().Unix(), 10),
	}

	body, err := c.postForm(ctx, c.giftCodeURL, params)
	if err != nil {
		return nil, fmt.Errorf("redeem code for %d: %w", fid, err)
	}

	var resp GiftCodeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("redeem code for %d: decode response: %w", fid, err)
	}
	return &resp, nil
}

// postForm signs params and posts the form, retrying rate-limited and
// transport-level failures with linearly growing delays. Application-level
// failure codes inside a 200 body are decided outcomes and never retried.
func (c *Client) postForm(ctx context.Context, url string, params map[string]any) ([]byte, error) {
	payload := sign.Encode(params, c.secret).Encode()

	backoff := retry.WithMaxRetries(constants.RetryMaxAttempts-1, linearBackoff(c.retryBase))

	var body []byte
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req := fasthttp.AcquireRequest()
		resp := fasthttp.AcquireResponse()
		defer fasthttp.ReleaseRequest(req)
		defer fasthttp.ReleaseResponse(resp)

		req.SetRequestURI(url)
		req.Header.SetMethod(fasthttp.MethodPost)
		req.Header.Set("accept", "application/json, text/plain, */*")
		req.Header.SetContentType("application/x-www-form-urlencoded")
		req.Header.Set("origin", c.giftCodeURL)
		req.SetBodyString(payload)

		c.throttle.wait()

		var err error
		if deadline, ok := ctx.Deadline(); ok {
			err = c.client.DoDeadline(req, resp, deadline)
		} else {
			err = c.client.Do(req, resp)
		}
		if err != nil {
			return retry.RetryableError(fmt.Errorf("post %s: %w", url, err))
		}

		switch resp.StatusCode() {
		case fasthttp.StatusOK:
			body = append([]byte(nil), resp.Body()...)
			return nil
		case fasthttp.StatusTooManyRequests:
			c.logger.Debug().Str("url", url).Msg("rate limited, backing off")
			return retry.RetryableError(fmt.Errorf("post %s: rate limited", url))
		default:
			return fmt.Errorf("post %s: unexpected status %d", url, resp.StatusCode())
		}
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// linearBackoff grows the delay by base on every retry: base, 2*base, 3*base...
func linearBackoff(base time.Duration) retry.Backoff {
	var attempt uint64
	return retry.BackoffFunc(func() (time.Duration, bool) {
		n := atomic.AddUint64(&attempt, 1)
		return time.Duration(n) * base, false
	})
}

// throttle spaces outbound calls process-wide when the service rate-limits
// globally rather than per account. A zero interval disables it.
type throttle struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time
}

func newThrottle(interval time.Duration) *throttle {
	return &throttle{interval: interval}
}

func (t *throttle) wait() {
	if t.interval <= 0 {
		return
	}

	t.mu.Lock()
	now := time.Now()
	if now.Before(t.next) {
		sleep := t.next.Sub(now)
		t.next = t.next.Add(t.interval)
		t.mu.Unlock()
		time.Sleep(sleep)
		return
	}
	t.next = now.Add(t.interval)
	t.mu.Unlock()
}
