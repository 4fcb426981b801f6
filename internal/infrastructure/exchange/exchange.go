package exchange

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ParseJSON safely parses JSON
func ParseJSON(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("json unmarshal: %w", err)
	}
	return nil
}

// JoinURL 拼接 base 与相对路径，并附加 query
func JoinURL(base, path string, query url.Values) (string, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		return "", errors.New("base url is empty")
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(strings.TrimLeft(path, "/"))
	if err != nil {
		return "", err
	}
	u = u.ResolveReference(ref)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String(), nil
}
