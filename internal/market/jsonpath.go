package market

import (
	"bytes"
	"encoding/json"
	"strings"

	apperrors "github.com/stvowns/portfolio-tracker-starter-sub001/internal/errors"

	"github.com/PaesslerAG/jsonpath"
	"github.com/shopspring/decimal"
)

// decodeDocument parses a JSON body into a generic document. Numbers are kept
// as json.Number so prices convert to decimal without float rounding.
func decodeDocument(body []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrMalformedResponse, err, "response is not valid JSON")
	}
	return doc, nil
}

// lookup evaluates a JSONPath expression. A missing path or a JSON null
// reports ok=false.
func lookup(doc any, path string) (any, bool) {
	v, err := jsonpath.Get(path, doc)
	if err != nil || v == nil {
		return nil, false
	}
	return v, true
}

// decimalValue converts a JSON scalar into a decimal. Strings are accepted
// because some feeds quote their numbers, sometimes with a decimal comma.
func decimalValue(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(n), true
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return decimal.Zero, false
		}
		if !strings.Contains(s, ".") {
			s = strings.Replace(s, ",", ".", 1)
		}
		d, err := decimal.NewFromString(s)
		return d, err == nil
	}
	return decimal.Zero, false
}

// stringValue returns v as a trimmed string when it is a JSON string.
func stringValue(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}
