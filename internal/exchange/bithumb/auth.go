package bithumb

import (
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"net/url"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// param is one request-body field. Order matters: the query hash is taken
// over the fields in the order they are sent.
type param struct {
	key, value string
}

// encodeParams url-encodes params in order, e.g. "market=KRW-BTC&side=bid".
func encodeParams(params []param) string {
	parts := make([]string, 0, len(params))
	for _, p := range params {
		parts = append(parts, url.QueryEscape(p.key)+"="+url.QueryEscape(p.value))
	}
	return strings.Join(parts, "&")
}

// queryHash is the SHA-512 hex digest of the encoded params.
func queryHash(params []param) string {
	sum := sha512.Sum512([]byte(encodeParams(params)))
	return hex.EncodeToString(sum[:])
}

// authorization builds the "Bearer <jwt>" header value. When params is
// non-empty the token also carries the query hash of the request body.
func (c *Client) authorization(params []param) (string, error) {
	if c.p.AccessKey == "" || c.p.SecretKey == "" {
		return "", errors.New("bithumb: api credentials not configured")
	}
	claims := jwt.MapClaims{
		"access_key": c.p.AccessKey,
		"nonce":      uuid.NewString(),
		"timestamp":  c.now().UnixMilli(),
	}
	if len(params) > 0 {
		claims["query_hash"] = queryHash(params)
		claims["query_hash_alg"] = "SHA512"
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(c.p.SecretKey))
	if err != nil {
		return "", err
	}
	return "Bearer " + token, nil
}
