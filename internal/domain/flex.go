package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FlexString accepts a JSON string, number, boolean or null. Gateways are
// not consistent about quoting identifiers.
//
// Non-string values render the way the gateway renders them when it signs
// a notification: integers keep their digits, other numbers use the
// shortest decimal form (1.50 is "1.5"), and zero, false and null are
// empty.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")), bytes.Equal(data, []byte("false")):
		*f = ""
		return nil
	case bytes.Equal(data, []byte("true")):
		*f = "true"
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("flex string: unsupported value %s", data)
	}
	s, err := formatNumber(n)
	if err != nil {
		return fmt.Errorf("flex string: %w", err)
	}
	*f = FlexString(s)
	return nil
}

func (f FlexString) String() string {
	return string(f)
}

func formatNumber(n json.Number) (string, error) {
	raw := n.String()
	if !strings.ContainsAny(raw, ".eE") {
		digits := strings.TrimLeft(strings.TrimPrefix(raw, "-"), "0")
		if digits == "" {
			return "", nil
		}
		if strings.HasPrefix(raw, "-") {
			return "-" + digits, nil
		}
		return digits, nil
	}

	v, err := n.Float64()
	if err != nil {
		return "", err
	}
	if v == 0 {
		return "", nil
	}
	return strconv.FormatFloat(v, 'f', -1, 64), nil
}
