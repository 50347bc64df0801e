package shopee

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"

	"archie-core-shopee-layer/internal/domain"
)

// ErrMissingAppKeys indicates the partner id or key is not configured
var ErrMissingAppKeys = errors.New("shopee: partner id and partner key are required")

// Signer produces request signatures for one partner application
type Signer struct {
	partnerID  int64
	partnerKey []byte
}

// NewSigner creates a signer; missing keys are a configuration error raised before any signing
func NewSigner(keys domain.AppKeys) (*Signer, error) {
	if !keys.Valid() {
		return nil, ErrMissingAppKeys
	}
	return &Signer{
		partnerID:  keys.PartnerID,
		partnerKey: []byte(keys.PartnerKey),
	}, nil
}

// PartnerID returns the partner id the signer was built for
func (s *Signer) PartnerID() int64 {
	return s.partnerID
}

// RefreshBase is the four-field base string: partner_id + path + timestamp.
// Only the token refresh endpoint uses it.
func RefreshBase(partnerID int64, path string, timestamp int64) string {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(partnerID, 10))
	b.WriteString(path)
	b.WriteString(strconv.FormatInt(timestamp, 10))
	return b.String()
}

// AuthenticatedBase is the five-field base string:
// partner_id + path + timestamp + access_token + shop_id
func AuthenticatedBase(partnerID int64, path string, timestamp int64, accessToken, shopID string) string {
	var b strings.Builder
	b.WriteString(RefreshBase(partnerID, path, timestamp))
	b.WriteString(accessToken)
	b.WriteString(shopID)
	return b.String()
}

// Sign returns the lowercase hex HMAC-SHA256 of base keyed by the partner key
func Sign(partnerKey []byte, base string) string {
	h := hmac.New(sha256.New, partnerKey)
	h.Write([]byte(base))
	return hex.EncodeToString(h.Sum(nil))
}

// SignRefresh signs a token refresh call
func (s *Signer) SignRefresh(path string, timestamp int64) string {
	return Sign(s.partnerKey, RefreshBase(s.partnerID, path, timestamp))
}

// SignAuthenticated signs a shop-level call
func (s *Signer) SignAuthenticated(path string, timestamp int64, accessToken, shopID string) string {
	return Sign(s.partnerKey, AuthenticatedBase(s.partnerID, path, timestamp, accessToken, shopID))
}
