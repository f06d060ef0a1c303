package http

import (
	"github.com/gin-gonic/gin"
	"github.com/xeipuuv/gojsonschema"
)

// Settlement plans and schedule mutations arrive as nested JSON; they are
// checked against a schema before binding so malformed plans fail with a
// field-level message instead of a half-applied bind.

const settlementPlanSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "adjustments": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "kind": {"enum": ["repayment", "refund", "convert_to_personal", "expense_writeoff"]},
          "account_id": {"type": "integer", "minimum": 1},
          "amount": {"type": ["string", "number"]}
        },
        "required": ["kind", "account_id", "amount"],
        "additionalProperties": false
      }
    },
    "terminal": {"enum": ["", "forgive_debt", "erase_funds"]}
  },
  "additionalProperties": false
}`

const extraPaymentSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "account_id": {"type": "integer", "minimum": 1},
    "amount": {"type": ["string", "number"]},
    "mode": {"enum": ["reduce_payment", "reduce_term", "skip_entries", "reduce_principal"]},
    "skip_count": {"type": "integer", "minimum": 1}
  },
  "required": ["account_id", "amount", "mode"],
  "additionalProperties": false
}`

func mustSchema(src string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(err)
	}
	return schema
}

// validateBody checks raw JSON against a schema and writes a 422 with the
// schema errors on failure. Returns the body bytes for binding on success.
func (s *Server) validateBody(c *gin.Context, schema *gojsonschema.Schema) ([]byte, bool) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(400, gin.H{"error": "invalid_request"})
		return nil, false
	}
	res, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		c.JSON(400, gin.H{"error": "invalid_json"})
		return nil, false
	}
	if !res.Valid() {
		details := []string{}
		for _, e := range res.Errors() {
			details = append(details, e.String())
		}
		c.JSON(422, gin.H{"error": "schema_invalid", "details": details})
		return nil, false
	}
	return body, true
}
