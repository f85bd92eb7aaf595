package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/erazemk/scanpoint/internal/model"
)

// ErrMalformedLookup is returned when a lookup response matches neither
// known shape.
var ErrMalformedLookup = errors.New("malformed lookup response")

// lookupResponse covers both lookup shapes the backend has served: the
// tagged {found, item_type, data|message} form and the older search form
// {code, results}.
type lookupResponse struct {
	Found    *bool           `json:"found"`
	ItemType model.ScanType  `json:"item_type"`
	Data     json.RawMessage `json:"data"`
	Message  string          `json:"message"`

	Code    string         `json:"code"`
	Results []searchResult `json:"results"`
}

type searchResult struct {
	Type  string          `json:"type"`
	ID    string          `json:"id"`
	Label string          `json:"label"`
	Data  json.RawMessage `json:"data"`
}

// Lookup resolves code against entities of scanType.
func (c *Client) Lookup(ctx context.Context, code string, scanType model.ScanType) (model.ScanResolution, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, errors.New("empty code")
	}
	if !scanType.Valid() {
		return nil, fmt.Errorf("invalid scan type %q", scanType)
	}

	var raw json.RawMessage
	err := c.do(ctx, http.MethodPost, "/api/barcode/lookup", map[string]string{
		"code":      code,
		"scan_type": string(scanType),
	}, &raw)

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		// Some deployments answer an unknown code with 404 and a found=false body.
		if res, perr := parseLookup(apiErr.body, code, scanType); perr == nil {
			if _, ok := res.(*model.NotFound); ok {
				return res, nil
			}
		}
		return &model.NotFound{Code: code, Message: apiErr.Message}, nil
	}
	if err != nil {
		return nil, err
	}

	return parseLookup(raw, code, scanType)
}

func parseLookup(raw []byte, code string, scanType model.ScanType) (model.ScanResolution, error) {
	var resp lookupResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedLookup, err)
	}

	switch {
	case resp.Found != nil:
		return parseTagged(resp, code, scanType)
	case resp.Results != nil:
		return parseSearch(resp, code, scanType)
	default:
		return nil, fmt.Errorf("%w: neither found nor results present", ErrMalformedLookup)
	}
}

func parseTagged(resp lookupResponse, code string, scanType model.ScanType) (model.ScanResolution, error) {
	if !*resp.Found {
		msg := resp.Message
		if strings.TrimSpace(msg) == "" {
			msg = notFoundMessage(code, scanType)
		}
		return &model.NotFound{Code: code, Message: msg}, nil
	}

	itemType := resp.ItemType
	if itemType == "" {
		itemType = scanType
	}
	return buildFound(code, itemType, resp.Data)
}

func parseSearch(resp lookupResponse, code string, scanType model.ScanType) (model.ScanResolution, error) {
	for _, r := range resp.Results {
		itemType, ok := searchType(r.Type)
		if !ok || itemType != scanType {
			continue
		}
		data := r.Data
		if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
			data = minimalEntity(itemType, r, code)
		}
		return buildFound(code, itemType, data)
	}
	return &model.NotFound{Code: code, Message: notFoundMessage(code, scanType)}, nil
}

// searchType maps result types of the search form onto scan types.
func searchType(t string) (model.ScanType, bool) {
	switch t {
	case "serialized_item", "device", "serial":
		return model.ScanTypeSerializedItem, true
	case "product", "part":
		return model.ScanTypeProduct, true
	}
	return "", false
}

func minimalEntity(itemType model.ScanType, r searchResult, code string) json.RawMessage {
	var v any
	if itemType == model.ScanTypeSerializedItem {
		v = model.SerializedItem{ID: r.ID, SerialNumber: code, Barcode: code}
	} else {
		v = model.Product{ID: r.ID, Name: r.Label, Barcode: code}
	}
	data, _ := json.Marshal(v)
	return data
}

func buildFound(code string, itemType model.ScanType, data json.RawMessage) (model.ScanResolution, error) {
	found := &model.Found{Code: code, ItemType: itemType}

	switch itemType {
	case model.ScanTypeSerializedItem:
		var item model.SerializedItem
		if err := json.Unmarshal(data, &item); err != nil {
			return nil, fmt.Errorf("%w: decoding serialized item: %v", ErrMalformedLookup, err)
		}
		if item.ID == "" {
			return nil, fmt.Errorf("%w: serialized item has no id", ErrMalformedLookup)
		}
		found.Item = &item
	case model.ScanTypeProduct:
		var product model.Product
		if err := json.Unmarshal(data, &product); err != nil {
			return nil, fmt.Errorf("%w: decoding product: %v", ErrMalformedLookup, err)
		}
		if product.ID == "" {
			return nil, fmt.Errorf("%w: product has no id", ErrMalformedLookup)
		}
		found.Product = &product
	default:
		return nil, fmt.Errorf("%w: unknown item type %q", ErrMalformedLookup, itemType)
	}
	return found, nil
}

func notFoundMessage(code string, scanType model.ScanType) string {
	if scanType == model.ScanTypeProduct {
		return fmt.Sprintf("No product found for code %s", code)
	}
	return fmt.Sprintf("No serialized item found for code %s", code)
}
