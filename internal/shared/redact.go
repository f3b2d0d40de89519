package shared

// RedactedValue replaces secret field values in rendered log output.
const RedactedValue = "[redacted]"

// secretFields are the record fields that must never reach persistent logs
// unmasked. Matching is case-sensitive on the log key.
var secretFields = map[string]struct{}{
	"password_hash":   {},
	"hashed_password": {},
	"access_token":    {},
	"token":           {},
}

// Redact returns a copy of the key-value pairs with every secret field value
// replaced by [RedactedValue].
//
// Every source or target record surfaced to a logger must pass through this
// function first; callers hand the result straight to [log.Logger] methods.
func Redact(kv ...any) []any {
	out := make([]any, len(kv))
	copy(out, kv)

	for i := 0; i+1 < len(out); i += 2 {
		key, ok := out[i].(string)
		if !ok {
			continue
		}
		if _, secret := secretFields[key]; secret {
			out[i+1] = RedactedValue
		}
	}

	return out
}
