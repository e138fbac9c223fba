package openai

const receiptResponseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "date": {
      "type": "string",
      "pattern": "^[0-9]{4}-[0-9]{2}-[0-9]{2}$"
    },
    "vendor_name": {
      "type": "string"
    },
    "total_amount": {
      "type": "number",
      "minimum": 0
    },
    "category": {
      "type": "string"
    },
    "confidence": {
      "type": "number",
      "minimum": 0,
      "maximum": 1
    }
  },
  "additionalProperties": false
}`

const receiptPrompt = `You are reading a photographed or scanned store receipt. Extract the
purchase date, the vendor (store) name, the total amount paid, and an
expense category, and return them as JSON.

Output ONLY valid JSON which complies with the schema given below. Do not
include any preamble, explanation, greeting, or acknowledgment. Start your
response directly with the opening brace { and end with the closing
brace }. Your output must exactly follow this schema:

` + receiptResponseSchema + `

Rules:
- "date" is the purchase date printed on the receipt in YYYY-MM-DD form.
  Convert two-digit years to 20xx. Omit the field if no date is readable.
- "vendor_name" is the store or merchant name, as printed. Omit if
  unreadable.
- "total_amount" is the final amount paid, as a plain number without
  currency symbols or thousands separators. Omit if unreadable.
- "category" is a short expense category for the purchase (e.g.
  "groceries", "transport", "dining"). Omit if you cannot tell.
- "confidence" is your overall confidence in the extracted values from 0
  to 1.
- Omit any field you cannot read rather than guessing. Do not hallucinate.
- The JSON must parse without errors; no trailing commas, no extra keys,
  and no extraneous text outside the object.

Example:
A receipt from "セブンイレブン" dated 25/01/09 totaling ¥1,280:
{
  "date": "2025-01-09",
  "vendor_name": "セブンイレブン",
  "total_amount": 1280,
  "category": "groceries",
  "confidence": 0.93
}`
