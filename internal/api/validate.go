// internal/api/validate.go
package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	stderrors "builder-licensing/internal/common/errors"

	"github.com/xeipuuv/gojsonschema"
)

const maxBodyBytes = 1 << 20

// Request body schemas. Declared as Go maps so they live next to the
// handlers that use them and fail loudly at validation time rather than at
// file-load time.
var (
	issueSchema = map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"email", "tier", "days"},
		"properties": map[string]interface{}{
			"email":           map[string]interface{}{"type": "string", "format": "email", "minLength": 3},
			"name":            map[string]interface{}{"type": "string"},
			"tier":            map[string]interface{}{"type": "string", "enum": []interface{}{"starter", "pro", "master"}},
			"days":            map[string]interface{}{"type": "integer", "minimum": 1},
			"sourcePaymentId": map[string]interface{}{"type": "string"},
			"notes":           map[string]interface{}{"type": "string"},
		},
		"additionalProperties": false,
	}

	validateSchema = map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"key"},
		"properties": map[string]interface{}{
			"key": map[string]interface{}{"type": "string", "minLength": 1},
		},
		"additionalProperties": false,
	}

	extendSchema = map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"key", "days"},
		"properties": map[string]interface{}{
			"key":  map[string]interface{}{"type": "string", "minLength": 1},
			"days": map[string]interface{}{"type": "integer", "minimum": 1},
		},
		"additionalProperties": false,
	}

	revokeSchema = map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"key"},
		"properties": map[string]interface{}{
			"key":    map[string]interface{}{"type": "string", "minLength": 1},
			"reason": map[string]interface{}{"type": "string"},
		},
		"additionalProperties": false,
	}

	enqueueSchema = map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"type", "toEmail"},
		"properties": map[string]interface{}{
			"type":    map[string]interface{}{"type": "string"},
			"toEmail": map[string]interface{}{"type": "string", "minLength": 3},
			"name":    map[string]interface{}{"type": "string"},
			"payload": map[string]interface{}{"type": "object"},
		},
		"additionalProperties": false,
	}

	resolveSchema = map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"outcome"},
		"properties": map[string]interface{}{
			"outcome": map[string]interface{}{"type": "string", "enum": []interface{}{"sent", "retry"}},
		},
		"additionalProperties": false,
	}
)

// decodeBody validates the request body against schema and decodes it into
// dst. Validation errors carry every failing field in one response.
func decodeBody(r *http.Request, schema map[string]interface{}, dst interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return stderrors.NewValidationError("failed to read request body")
	}
	if len(body) == 0 {
		return stderrors.NewValidationError("request body is required")
	}

	schemaLoader := gojsonschema.NewGoLoader(schema)
	documentLoader := gojsonschema.NewBytesLoader(body)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return stderrors.NewValidationError(fmt.Sprintf("invalid JSON: %v", err))
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return stderrors.NewValidationError(strings.Join(errs, "; "))
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return stderrors.NewValidationError(fmt.Sprintf("failed to decode request: %v", err))
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
