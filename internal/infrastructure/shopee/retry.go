package shopee

import (
	"net/url"
	"sort"
	"strings"
)

// RetryConfig caps the in-call recovery strategies
type RetryConfig struct {
	// AuthRefreshes is how many token refreshes one call may trigger
	AuthRefreshes int
	// ParamRetries is how many times one call may switch list encoding
	ParamRetries int
}

// DefaultRetryConfig allows one refresh and one re-encoding per call
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		AuthRefreshes: 1,
		ParamRetries:  1,
	}
}

// ListEncoding controls how list-valued query parameters are serialized
type ListEncoding int

const (
	// EncodingCSV sends k=a,b,c
	EncodingCSV ListEncoding = iota
	// EncodingRepeated sends k=a&k=b&k=c
	EncodingRepeated
)

func (e ListEncoding) String() string {
	if e == EncodingRepeated {
		return "repeated"
	}
	return "csv"
}

// alternate returns the other encoding
func (e ListEncoding) alternate() ListEncoding {
	if e == EncodingCSV {
		return EncodingRepeated
	}
	return EncodingCSV
}

// encodeListParams serializes list parameters with a stable key order
func encodeListParams(params map[string][]string, enc ListEncoding) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		values := params[k]
		if len(values) == 0 {
			continue
		}
		switch enc {
		case EncodingRepeated:
			for _, v := range values {
				parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(v))
			}
		default:
			parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(strings.Join(values, ",")))
		}
	}
	return strings.Join(parts, "&")
}
