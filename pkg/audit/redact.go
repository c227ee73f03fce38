package audit

// RedactionMask replaces redacted payload values.
const RedactionMask = "[REDACTED]"

// Redact returns a copy of the record with the named payload fields masked.
// The original record is never altered; the copy's hash fields are kept so
// a redacted export still shows which chain entry it came from, but the
// copy will (intentionally) no longer verify against its stored hash.
func Redact(r Record, fields []string) Record {
	out := r
	out.Payload = make(map[string]interface{}, len(r.Payload))
	for k, v := range r.Payload {
		out.Payload[k] = v
	}
	for _, f := range fields {
		if _, ok := out.Payload[f]; ok {
			out.Payload[f] = RedactionMask
		}
	}
	return out
}

// RedactAll applies Redact to every record.
func RedactAll(records []Record, fields []string) []Record {
	out := make([]Record, len(records))
	for i, r := range records {
		out[i] = Redact(r, fields)
	}
	return out
}
