package shopee

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"archie-core-shopee-layer/internal/domain"
	"archie-core-shopee-layer/internal/infrastructure/metrics"

	"github.com/rs/zerolog"
)

// Client is a signed Shopee Open Platform client bound to one partner application
type Client struct {
	hosts       []string
	httpClient  *http.Client
	signer      *Signer
	tokens      *TokenManager
	rateLimiter *RateLimiter
	retryConfig RetryConfig
	metrics     *metrics.Metrics
	logger      zerolog.Logger
	now         func() time.Time
}

// NewClient creates a client with default retry options and no rate limiting
func NewClient(cfg ClientConfig, keys domain.AppKeys, tokens *TokenManager) (*Client, error) {
	return NewClientWithOptions(cfg, keys, tokens, nil, DefaultRetryConfig(), nil, zerolog.Nop())
}

// NewClientWithOptions creates a client with rate limiting and retry options
func NewClientWithOptions(
	cfg ClientConfig,
	keys domain.AppKeys,
	tokens *TokenManager,
	rateLimiter *RateLimiter,
	retryConfig RetryConfig,
	m *metrics.Metrics,
	logger zerolog.Logger,
) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	signer, err := NewSigner(keys)
	if err != nil {
		return nil, err
	}
	if tokens == nil {
		tokens = NewTokenManager(nil, m, logger)
	}
	return &Client{
		hosts:       cfg.Hosts,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		signer:      signer,
		tokens:      tokens,
		rateLimiter: rateLimiter,
		retryConfig: retryConfig,
		metrics:     m,
		logger:      logger,
		now:         time.Now,
	}, nil
}

// call describes one logical API call; do turns it into one or more attempts
type call struct {
	name       string
	method     string
	path       string
	query      url.Values
	listParams map[string][]string
	body       interface{}
	binary     bool
	auth       *domain.AuthContext
}

type response struct {
	host        string
	statusCode  int
	contentType string
	body        []byte
	env         envelope
}

// do executes c with the recovery policy:
// auth failures refresh once and retry on the same host,
// parameter failures retry once with the alternate list encoding,
// transient failures move to the next host,
// any other rejection abandons the call.
func (c *Client) do(ctx context.Context, req call) (*response, error) {
	encoding := EncodingCSV
	refreshes, reencodings := 0, 0
	var lastErr error

	for hostIdx := 0; hostIdx < len(c.hosts); {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		host := c.hosts[hostIdx]

		var token string
		var gen uint64
		if req.auth != nil {
			if !req.auth.IsValid() {
				return nil, domain.ErrAuthAbandoned
			}
			token, gen = req.auth.Current()
		}

		resp, err := c.send(ctx, host, req, token, encoding)
		if err != nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}

		apiErr := &APIError{Endpoint: req.name, Host: host}
		if resp != nil {
			apiErr.StatusCode = resp.statusCode
			apiErr.Code = resp.env.Error
			apiErr.Message = resp.env.Message
			apiErr.RequestID = resp.env.RequestID
		}
		class := Classify(apiErr.StatusCode, apiErr.Code, err)
		c.metrics.ObserveUpstreamCall(req.name, class.String())

		switch class {
		case ClassSuccess:
			return resp, nil

		case ClassAuthInvalid:
			if req.auth == nil {
				return nil, fmt.Errorf("%w: %w", ErrRefreshFailed, apiErr)
			}
			if refreshes >= c.retryConfig.AuthRefreshes {
				req.auth.Invalidate()
				return nil, fmt.Errorf("%w: %w", domain.ErrAuthAbandoned, apiErr)
			}
			refreshes++
			c.logger.Info().
				Str("endpoint", req.name).
				Str("integration_id", req.auth.IntegrationID).
				Str("error_code", apiErr.Code).
				Msg("Access token rejected, refreshing")
			if err := c.tokens.Refresh(ctx, req.auth, gen, c.RefreshAccessToken); err != nil {
				return nil, err
			}

		case ClassParamInvalid:
			if len(req.listParams) == 0 || reencodings >= c.retryConfig.ParamRetries {
				return nil, fmt.Errorf("%w: %w", ErrParamRejected, apiErr)
			}
			reencodings++
			encoding = encoding.alternate()
			c.logger.Debug().
				Str("endpoint", req.name).
				Str("encoding", encoding.String()).
				Msg("Parameters rejected, retrying with alternate list encoding")

		case ClassTransient:
			if err != nil {
				lastErr = err
			} else {
				lastErr = apiErr
			}
			c.logger.Warn().
				Err(lastErr).
				Str("endpoint", req.name).
				Str("host", host).
				Msg("Transient failure, failing over to next host")
			hostIdx++

		default:
			return nil, fmt.Errorf("%w: %w", ErrUpstreamRejected, apiErr)
		}
	}
	return nil, fmt.Errorf("%w: %s: %w", ErrHostsExhausted, req.name, lastErr)
}

// send performs one signed attempt against host.
// A non-nil error means no HTTP response was received.
func (c *Client) send(ctx context.Context, host string, req call, token string, encoding ListEncoding) (*response, error) {
	timestamp := c.now().Unix()

	q := url.Values{}
	q.Set("partner_id", strconv.FormatInt(c.signer.PartnerID(), 10))
	q.Set("timestamp", strconv.FormatInt(timestamp, 10))
	if req.auth != nil {
		q.Set("access_token", token)
		q.Set("shop_id", req.auth.ShopID)
		q.Set("sign", c.signer.SignAuthenticated(req.path, timestamp, token, req.auth.ShopID))
	} else {
		q.Set("sign", c.signer.SignRefresh(req.path, timestamp))
	}
	for k, values := range req.query {
		for _, v := range values {
			q.Add(k, v)
		}
	}
	rawQuery := q.Encode()
	if lists := encodeListParams(req.listParams, encoding); lists != "" {
		rawQuery += "&" + lists
	}
	fullURL := host + req.path + "?" + rawQuery

	var body io.Reader
	if req.body != nil {
		payload, err := json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	if err := c.rateLimiter.Wait(ctx, strconv.FormatInt(c.signer.PartnerID(), 10)); err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", req.name, err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", req.name, err)
	}

	resp := &response{
		host:        host,
		statusCode:  httpResp.StatusCode,
		contentType: httpResp.Header.Get("Content-Type"),
		body:        data,
	}
	if req.binary && !isJSON(resp.contentType) {
		return resp, nil
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &resp.env); err != nil && httpResp.StatusCode >= 200 && httpResp.StatusCode <= 299 {
			// a 2xx body that is not our envelope is treated like a broken gateway
			resp.statusCode = http.StatusBadGateway
			resp.env.Message = "malformed response body"
		}
	}
	return resp, nil
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json"
}

// decode unmarshals the envelope's response object into out
func decode(resp *response, name string, out interface{}) error {
	if len(resp.env.Response) == 0 || string(resp.env.Response) == "null" {
		return nil
	}
	if err := json.Unmarshal(resp.env.Response, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", name, err)
	}
	return nil
}

// Token lifecycle

// RefreshAccessToken exchanges a refresh token for a new pair.
// It is the RefreshFunc the token manager uses for this client's partner.
func (c *Client) RefreshAccessToken(ctx context.Context, refreshToken, shopID string) (*TokenGrant, error) {
	body := map[string]interface{}{
		"refresh_token": refreshToken,
		"partner_id":    c.signer.PartnerID(),
	}
	if id, err := strconv.ParseInt(shopID, 10, 64); err == nil {
		body["shop_id"] = id
	} else {
		body["shop_id"] = shopID
	}

	resp, err := c.do(ctx, call{
		name:   "refresh_access_token",
		method: http.MethodPost,
		path:   pathRefreshToken,
		body:   body,
	})
	if err != nil {
		return nil, err
	}

	var tr tokenResponse
	if err := json.Unmarshal(resp.body, &tr); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("%w: empty access token", ErrRefreshFailed)
	}
	expiresIn := time.Duration(tr.ExpireIn) * time.Second
	if expiresIn <= 0 {
		expiresIn = 4 * time.Hour
	}
	return &TokenGrant{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresAt:    c.now().Add(expiresIn),
	}, nil
}

// Prime refreshes the auth context upfront when its access token is unusable
func (c *Client) Prime(ctx context.Context, auth *domain.AuthContext) error {
	return c.tokens.Prime(ctx, auth, c.RefreshAccessToken)
}

// Order methods

// ListOrders returns one page of orders in the query window
func (c *Client) ListOrders(ctx context.Context, auth *domain.AuthContext, q ListQuery) (*ListPage, error) {
	params := url.Values{}
	params.Set("time_range_field", q.TimeRangeField)
	params.Set("time_from", strconv.FormatInt(q.TimeFrom.Unix(), 10))
	params.Set("time_to", strconv.FormatInt(q.TimeTo.Unix(), 10))
	params.Set("page_size", strconv.Itoa(q.PageSize))
	params.Set("response_optional_fields", "order_status")
	if q.Cursor != "" {
		params.Set("cursor", q.Cursor)
	}
	if len(q.Statuses) > 0 {
		params.Set("order_status", q.Statuses[0])
	}

	resp, err := c.do(ctx, call{
		name:   "get_order_list",
		method: http.MethodGet,
		path:   pathGetOrderList,
		query:  params,
		auth:   auth,
	})
	if err != nil {
		return nil, err
	}

	var out orderListResponse
	if err := decode(resp, "get_order_list", &out); err != nil {
		return nil, err
	}
	page := &ListPage{
		Cursor: domain.ListCursor{Next: out.NextCursor, More: out.More},
	}
	for _, raw := range out.OrderList {
		var entry orderListEntry
		if err := json.Unmarshal(raw, &entry); err != nil || entry.OrderSN == "" {
			continue
		}
		page.Entries = append(page.Entries, ListEntry{ID: entry.OrderSN, Raw: raw})
	}
	return page, nil
}

// GetOrderDetails fetches details for up to one batch of order numbers
func (c *Client) GetOrderDetails(ctx context.Context, auth *domain.AuthContext, orderSNs []string) ([]OrderDetail, error) {
	if len(orderSNs) == 0 {
		return nil, nil
	}
	params := url.Values{}
	params.Set("response_optional_fields", orderDetailOptionalFields)

	resp, err := c.do(ctx, call{
		name:       "get_order_detail",
		method:     http.MethodGet,
		path:       pathGetOrderDetail,
		query:      params,
		listParams: map[string][]string{"order_sn_list": orderSNs},
		auth:       auth,
	})
	if err != nil {
		return nil, err
	}

	var out orderDetailResponse
	if err := decode(resp, "get_order_detail", &out); err != nil {
		return nil, err
	}
	return out.OrderList, nil
}

// GetEscrowDetail returns the raw escrow (payment settlement) object of an order
func (c *Client) GetEscrowDetail(ctx context.Context, auth *domain.AuthContext, orderSN string) (json.RawMessage, error) {
	return c.getRaw(ctx, auth, "get_escrow_detail", pathGetEscrowDetail, url.Values{"order_sn": {orderSN}})
}

// GetShipmentList returns the packages of an order
func (c *Client) GetShipmentList(ctx context.Context, auth *domain.AuthContext, orderSN string) ([]Package, error) {
	params := url.Values{}
	params.Set("order_sn", orderSN)
	params.Set("page_size", strconv.Itoa(domain.MaxPageSize))

	resp, err := c.do(ctx, call{
		name:   "get_shipment_list",
		method: http.MethodGet,
		path:   pathGetShipmentList,
		query:  params,
		auth:   auth,
	})
	if err != nil {
		return nil, err
	}

	var out shipmentListResponse
	if err := decode(resp, "get_shipment_list", &out); err != nil {
		return nil, err
	}
	var packages []Package
	for _, o := range out.OrderList {
		if o.OrderSN != orderSN || o.PackageNumber == "" {
			continue
		}
		packages = append(packages, Package{PackageNumber: o.PackageNumber})
	}
	return packages, nil
}

// GetPackageDetail fetches logistics details for the given package numbers
func (c *Client) GetPackageDetail(ctx context.Context, auth *domain.AuthContext, packageNumbers []string) ([]Package, error) {
	if len(packageNumbers) == 0 {
		return nil, nil
	}
	resp, err := c.do(ctx, call{
		name:       "get_package_detail",
		method:     http.MethodGet,
		path:       pathGetPackageDetail,
		listParams: map[string][]string{"package_number_list": packageNumbers},
		auth:       auth,
	})
	if err != nil {
		return nil, err
	}

	var out packageDetailResponse
	if err := decode(resp, "get_package_detail", &out); err != nil {
		return nil, err
	}
	return out.PackageList, nil
}

// GetShippingParameter returns the raw shipping parameter object of a package
func (c *Client) GetShippingParameter(ctx context.Context, auth *domain.AuthContext, orderSN, packageNumber string) (json.RawMessage, error) {
	params := url.Values{"order_sn": {orderSN}}
	if packageNumber != "" {
		params.Set("package_number", packageNumber)
	}
	return c.getRaw(ctx, auth, "get_shipping_parameter", pathGetShippingParameter, params)
}

// GetBuyerInvoiceInfo returns the raw buyer invoice info of an order
func (c *Client) GetBuyerInvoiceInfo(ctx context.Context, auth *domain.AuthContext, orderSN string) (json.RawMessage, error) {
	resp, err := c.do(ctx, call{
		name:   "get_buyer_invoice_info",
		method: http.MethodPost,
		path:   pathGetBuyerInvoiceInfo,
		body: map[string]interface{}{
			"queries": []map[string]string{{"order_sn": orderSN}},
		},
		auth: auth,
	})
	if err != nil {
		return nil, err
	}
	return resp.env.Response, nil
}

// Shipping document methods

// GetShippingDocumentParameter returns the suggested document type of a package
func (c *Client) GetShippingDocumentParameter(ctx context.Context, auth *domain.AuthContext, ref DocumentRef) (*DocumentParameter, error) {
	resp, err := c.do(ctx, call{
		name:   "get_shipping_document_parameter",
		method: http.MethodPost,
		path:   pathGetShippingDocParameter,
		body:   documentOrderList{OrderList: []DocumentRef{{OrderSN: ref.OrderSN, PackageNumber: ref.PackageNumber}}},
		auth:   auth,
	})
	if err != nil {
		return nil, err
	}

	var out documentParameterResponse
	if err := decode(resp, "get_shipping_document_parameter", &out); err != nil {
		return nil, err
	}
	if len(out.ResultList) == 0 {
		return nil, fmt.Errorf("%w: no document parameter for %s", ErrUpstreamRejected, ref.OrderSN)
	}
	param := out.ResultList[0]
	if param.FailError != "" {
		return nil, fmt.Errorf("%w: %s: %s", ErrUpstreamRejected, param.FailError, param.FailMessage)
	}
	return &param, nil
}

// CreateShippingDocument asks the marketplace to generate the document
func (c *Client) CreateShippingDocument(ctx context.Context, auth *domain.AuthContext, ref DocumentRef) error {
	resp, err := c.do(ctx, call{
		name:   "create_shipping_document",
		method: http.MethodPost,
		path:   pathCreateShippingDocument,
		body:   documentOrderList{OrderList: []DocumentRef{ref}},
		auth:   auth,
	})
	if err != nil {
		return err
	}

	var out documentResultResponse
	if err := decode(resp, "create_shipping_document", &out); err != nil {
		return err
	}
	for _, r := range out.ResultList {
		if r.FailError != "" {
			return fmt.Errorf("%w: %s: %s", ErrUpstreamRejected, r.FailError, r.FailMessage)
		}
	}
	return nil
}

// GetShippingDocumentResult returns the generation status of the document
func (c *Client) GetShippingDocumentResult(ctx context.Context, auth *domain.AuthContext, ref DocumentRef) (*DocumentResult, error) {
	resp, err := c.do(ctx, call{
		name:   "get_shipping_document_result",
		method: http.MethodPost,
		path:   pathGetShippingDocResult,
		body: documentOrderList{OrderList: []DocumentRef{{
			OrderSN:       ref.OrderSN,
			PackageNumber: ref.PackageNumber,
			DocumentType:  ref.DocumentType,
		}}},
		auth: auth,
	})
	if err != nil {
		return nil, err
	}

	var out documentResultResponse
	if err := decode(resp, "get_shipping_document_result", &out); err != nil {
		return nil, err
	}
	if len(out.ResultList) == 0 {
		return nil, fmt.Errorf("%w: no document result for %s", ErrUpstreamRejected, ref.OrderSN)
	}
	return &out.ResultList[0], nil
}

// DownloadShippingDocument downloads the generated document binary
func (c *Client) DownloadShippingDocument(ctx context.Context, auth *domain.AuthContext, ref DocumentRef) (*Document, error) {
	resp, err := c.do(ctx, call{
		name:   "download_shipping_document",
		method: http.MethodPost,
		path:   pathDownloadShippingDocument,
		body: documentOrderList{
			OrderList:            []DocumentRef{{OrderSN: ref.OrderSN, PackageNumber: ref.PackageNumber}},
			ShippingDocumentType: ref.DocumentType,
		},
		binary: true,
		auth:   auth,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.body) == 0 {
		return nil, fmt.Errorf("%w: empty shipping document for %s", ErrUpstreamRejected, ref.OrderSN)
	}
	contentType := resp.contentType
	if contentType == "" {
		contentType = "application/pdf"
	}
	return &Document{Content: resp.body, ContentType: contentType}, nil
}

// Item methods

// ListItems returns one page of items updated in the query window
func (c *Client) ListItems(ctx context.Context, auth *domain.AuthContext, q ListQuery) (*ListPage, error) {
	offset := 0
	if q.Cursor != "" {
		n, err := strconv.Atoi(q.Cursor)
		if err != nil {
			return nil, fmt.Errorf("invalid item list cursor %q: %w", q.Cursor, err)
		}
		offset = n
	}
	params := url.Values{}
	params.Set("offset", strconv.Itoa(offset))
	params.Set("page_size", strconv.Itoa(q.PageSize))
	if !q.TimeFrom.IsZero() {
		params.Set("update_time_from", strconv.FormatInt(q.TimeFrom.Unix(), 10))
	}
	if !q.TimeTo.IsZero() {
		params.Set("update_time_to", strconv.FormatInt(q.TimeTo.Unix(), 10))
	}

	resp, err := c.do(ctx, call{
		name:       "get_item_list",
		method:     http.MethodGet,
		path:       pathGetItemList,
		query:      params,
		listParams: map[string][]string{"item_status": q.Statuses},
		auth:       auth,
	})
	if err != nil {
		return nil, err
	}

	var out itemListResponse
	if err := decode(resp, "get_item_list", &out); err != nil {
		return nil, err
	}
	page := &ListPage{}
	if out.HasNextPage {
		page.Cursor = domain.ListCursor{Next: strconv.Itoa(out.NextOffset), More: true}
	}
	for _, raw := range out.Item {
		var entry itemListEntry
		if err := json.Unmarshal(raw, &entry); err != nil || entry.ItemID == 0 {
			continue
		}
		page.Entries = append(page.Entries, ListEntry{ID: strconv.FormatInt(entry.ItemID, 10), Raw: raw})
	}
	return page, nil
}

// GetItemBaseInfo fetches base info for up to one batch of item ids
func (c *Client) GetItemBaseInfo(ctx context.Context, auth *domain.AuthContext, itemIDs []string) ([]ItemDetail, error) {
	if len(itemIDs) == 0 {
		return nil, nil
	}
	resp, err := c.do(ctx, call{
		name:       "get_item_base_info",
		method:     http.MethodGet,
		path:       pathGetItemBaseInfo,
		listParams: map[string][]string{"item_id_list": itemIDs},
		auth:       auth,
	})
	if err != nil {
		return nil, err
	}

	var out itemBaseInfoResponse
	if err := decode(resp, "get_item_base_info", &out); err != nil {
		return nil, err
	}
	return out.ItemList, nil
}

// GetModelList returns the raw variation list of an item
func (c *Client) GetModelList(ctx context.Context, auth *domain.AuthContext, itemID string) (json.RawMessage, error) {
	return c.getRaw(ctx, auth, "get_model_list", pathGetModelList, url.Values{"item_id": {itemID}})
}

// GetItemExtraInfo returns the raw extra info (sales, views, rating) of an item
func (c *Client) GetItemExtraInfo(ctx context.Context, auth *domain.AuthContext, itemID string) (json.RawMessage, error) {
	resp, err := c.do(ctx, call{
		name:       "get_item_extra_info",
		method:     http.MethodGet,
		path:       pathGetItemExtraInfo,
		listParams: map[string][]string{"item_id_list": {itemID}},
		auth:       auth,
	})
	if err != nil {
		return nil, err
	}
	return resp.env.Response, nil
}

func (c *Client) getRaw(ctx context.Context, auth *domain.AuthContext, name, path string, params url.Values) (json.RawMessage, error) {
	resp, err := c.do(ctx, call{
		name:   name,
		method: http.MethodGet,
		path:   path,
		query:  params,
		auth:   auth,
	})
	if err != nil {
		return nil, err
	}
	return resp.env.Response, nil
}
