package shopee

import (
	"errors"
	"strings"
	"time"
)

const (
	// ProductionHost is the global partner API gateway
	ProductionHost = "https://partner.shopeemobile.com"
	// BrazilHost is the regional gateway used as failover
	BrazilHost = "https://openplatform.shopee.com.br"
)

// maxResponseSize is the maximum allowed response size (shipping documents included)
const maxResponseSize = 20 * 1024 * 1024

// API paths
const (
	pathRefreshToken             = "/api/v2/auth/access_token/get"
	pathGetOrderList             = "/api/v2/order/get_order_list"
	pathGetOrderDetail           = "/api/v2/order/get_order_detail"
	pathGetShipmentList          = "/api/v2/order/get_shipment_list"
	pathGetPackageDetail         = "/api/v2/order/get_package_detail"
	pathGetBuyerInvoiceInfo      = "/api/v2/order/get_buyer_invoice_info"
	pathGetEscrowDetail          = "/api/v2/payment/get_escrow_detail"
	pathGetShippingParameter     = "/api/v2/logistics/get_shipping_parameter"
	pathGetShippingDocParameter  = "/api/v2/logistics/get_shipping_document_parameter"
	pathCreateShippingDocument   = "/api/v2/logistics/create_shipping_document"
	pathGetShippingDocResult     = "/api/v2/logistics/get_shipping_document_result"
	pathDownloadShippingDocument = "/api/v2/logistics/download_shipping_document"
	pathGetItemList              = "/api/v2/product/get_item_list"
	pathGetItemBaseInfo          = "/api/v2/product/get_item_base_info"
	pathGetModelList             = "/api/v2/product/get_model_list"
	pathGetItemExtraInfo         = "/api/v2/product/get_item_extra_info"
)

// orderDetailOptionalFields is requested on every order detail call
const orderDetailOptionalFields = "buyer_user_id,buyer_username,estimated_shipping_fee,recipient_address," +
	"actual_shipping_fee,goods_to_declare,note,note_update_time,item_list,pay_time,dropshipper," +
	"dropshipper_phone,split_up,buyer_cancel_reason,cancel_by,cancel_reason,actual_shipping_fee_confirmed," +
	"buyer_cpf_id,fulfillment_flag,pickup_done_time,package_list,shipping_carrier,payment_method," +
	"total_amount,invoice_data,order_chargeable_weight_gram,return_request_due_date,edt"

// ErrNoHosts indicates the client was configured without any API host
var ErrNoHosts = errors.New("shopee: at least one API host is required")

// ClientConfig holds the transport configuration shared by every client in a pool
type ClientConfig struct {
	// Hosts are tried in order; a transient failure moves the call to the next one
	Hosts []string
	// Timeout is the per-request HTTP timeout
	Timeout time.Duration
	// RateLimitPerSecond caps upstream calls per partner
	RateLimitPerSecond float64
}

// DefaultClientConfig returns production hosts with conservative limits
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Hosts:              []string{ProductionHost, BrazilHost},
		Timeout:            30 * time.Second,
		RateLimitPerSecond: 10,
	}
}

// Validate normalizes hosts and applies defaults
func (c *ClientConfig) Validate() error {
	hosts := make([]string, 0, len(c.Hosts))
	for _, h := range c.Hosts {
		h = strings.TrimRight(strings.TrimSpace(h), "/")
		if h != "" {
			hosts = append(hosts, h)
		}
	}
	if len(hosts) == 0 {
		return ErrNoHosts
	}
	c.Hosts = hosts
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.RateLimitPerSecond <= 0 {
		c.RateLimitPerSecond = 10
	}
	return nil
}
