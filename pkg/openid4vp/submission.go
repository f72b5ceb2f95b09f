package openid4vp

import (
	"fmt"

	"github.com/PaesslerAG/jsonpath"
)

// TokensFromSubmission extracts the presentation tokens a descriptor map
// points at. document is the decoded authorization response. Without a
// submission, the bare vp_token value is returned.
func TokensFromSubmission(document map[string]any, submission *PresentationSubmission) ([]string, error) {
	if submission == nil || len(submission.DescriptorMap) == 0 {
		token, _ := document["vp_token"].(string)
		if token == "" {
			return nil, fmt.Errorf("authorization response carries no vp_token")
		}
		return []string{token}, nil
	}

	seen := map[string]bool{}
	tokens := make([]string, 0, len(submission.DescriptorMap))
	for _, descriptor := range submission.DescriptorMap {
		value, err := jsonpath.Get(descriptor.Path, any(document))
		if err != nil {
			return nil, fmt.Errorf("descriptor %s: path %s not found", descriptor.ID, descriptor.Path)
		}
		token, ok := value.(string)
		if !ok || token == "" {
			return nil, fmt.Errorf("descriptor %s: path %s is not a token", descriptor.ID, descriptor.Path)
		}
		if seen[token] {
			continue
		}
		seen[token] = true
		tokens = append(tokens, token)
	}
	return tokens, nil
}

// VCPath names where a credential sits inside a JWT presentation, the
// location reported back for every validated credential.
func VCPath(index int) string {
	return fmt.Sprintf("$.vp.verifiableCredential[%d]", index)
}
