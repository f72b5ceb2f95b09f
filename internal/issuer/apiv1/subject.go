package apiv1

import "fmt"

// Structural limits on credentialSubject. Requests beyond these are
// rejected before any signing work happens.
const (
	maxSubjectKeys    = 1000
	maxSubjectString  = 1 << 20
	maxSubjectNesting = 10
)

// validateSubject walks the credential subject and enforces the key count,
// string size and nesting limits.
func validateSubject(subject map[string]any) error {
	keys := 0
	return walkSubject(subject, 1, &keys)
}

func walkSubject(value any, depth int, keys *int) error {
	if depth > maxSubjectNesting {
		return fmt.Errorf("credential subject exceeds %d nesting levels", maxSubjectNesting)
	}
	switch v := value.(type) {
	case map[string]any:
		*keys += len(v)
		if *keys > maxSubjectKeys {
			return fmt.Errorf("credential subject exceeds %d keys", maxSubjectKeys)
		}
		for _, nested := range v {
			if err := walkSubject(nested, depth+1, keys); err != nil {
				return err
			}
		}
	case []any:
		for _, item := range v {
			if err := walkSubject(item, depth+1, keys); err != nil {
				return err
			}
		}
	case string:
		if len(v) > maxSubjectString {
			return fmt.Errorf("credential subject string exceeds %d bytes", maxSubjectString)
		}
	}
	return nil
}
