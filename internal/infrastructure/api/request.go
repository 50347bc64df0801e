package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"archie-core-shopee-layer/internal/domain"
)

// flexString accepts a JSON string or number; shop and item ids arrive both ways
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", b)
	}
	*f = flexString(n.String())
	return nil
}

// flexStrings accepts a single value or an array of strings and numbers
type flexStrings []string

func (f *flexStrings) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = nil
		return nil
	}
	if b[0] != '[' {
		var one flexString
		if err := json.Unmarshal(b, &one); err != nil {
			return err
		}
		if one != "" {
			*f = flexStrings{string(one)}
		}
		return nil
	}
	var many []flexString
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	out := make(flexStrings, 0, len(many))
	for _, v := range many {
		out = append(out, string(v))
	}
	*f = out
	return nil
}

// syncRequestBody is the JSON invocation envelope
type syncRequestBody struct {
	OrganizationID flexString  `json:"organizationId"`
	ShopID         flexString  `json:"shop_id"`
	TimeFrom       flexString  `json:"time_from"`
	TimeTo         flexString  `json:"time_to"`
	TimeRangeField string      `json:"time_range_field"`
	PageSize       flexString  `json:"page_size"`
	OrderStatus    flexStrings `json:"order_status"`
	ItemStatus     flexStrings `json:"item_status"`
	OrderSN        flexString  `json:"order_sn"`
	OrderSNList    flexStrings `json:"order_sn_list"`
	ItemIDList     flexStrings `json:"item_id_list"`
}

// toDomain maps the body onto a SyncRequest for kind; time_from and time_to are unix seconds
func (b *syncRequestBody) toDomain(kind domain.EntityKind) (domain.SyncRequest, error) {
	req := domain.SyncRequest{
		OrganizationID: string(b.OrganizationID),
		ShopID:         string(b.ShopID),
		TimeRangeField: strings.TrimSpace(b.TimeRangeField),
	}

	var err error
	if req.TimeFrom, err = parseUnix("time_from", b.TimeFrom); err != nil {
		return req, err
	}
	if req.TimeTo, err = parseUnix("time_to", b.TimeTo); err != nil {
		return req, err
	}
	if b.PageSize != "" {
		if req.PageSize, err = strconv.Atoi(string(b.PageSize)); err != nil {
			return req, fmt.Errorf("%w: page_size must be an integer", domain.ErrInvalidRequest)
		}
	}

	if kind == domain.EntityKindItem {
		req.IDs = b.ItemIDList
		req.Statuses = b.ItemStatus
		return req, nil
	}

	if b.OrderSN != "" {
		req.IDs = append(req.IDs, string(b.OrderSN))
	}
	req.IDs = append(req.IDs, b.OrderSNList...)
	req.Statuses = b.OrderStatus
	return req, nil
}

func parseUnix(field string, v flexString) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	sec, err := strconv.ParseInt(string(v), 10, 64)
	if err != nil || sec < 0 {
		return time.Time{}, fmt.Errorf("%w: %s must be unix seconds", domain.ErrInvalidRequest, field)
	}
	return time.Unix(sec, 0).UTC(), nil
}
