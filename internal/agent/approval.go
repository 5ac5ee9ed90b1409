package agent

import "strings"

// ApprovalPolicy decides whether a reviewed solution passes the quality
// gate between worker output and integration.
type ApprovalPolicy interface {
	// Approve returns the verdict for a review evaluation text.
	Approve(evaluation string) bool
}

// AlwaysApprove passes every solution. It exists for compatibility with
// deployments that treat the review as advisory only.
type AlwaysApprove struct{}

// Approve always returns true.
func (AlwaysApprove) Approve(string) bool { return true }

// KeywordApproval rejects a solution when the evaluation contains any of
// the configured rejection phrases, and approves otherwise. An empty
// evaluation is rejected: no review, no approval.
type KeywordApproval struct {
	// RejectPhrases are matched case-insensitively.
	RejectPhrases []string
}

// NewKeywordApproval returns a KeywordApproval with the default phrase
// list.
func NewKeywordApproval() *KeywordApproval {
	return &KeywordApproval{
		RejectPhrases: []string{
			"not approved",
			"rejected",
			"does not meet",
			"fails to meet",
			"major issues",
			"fundamentally flawed",
			"must be redone",
		},
	}
}

// Approve implements ApprovalPolicy.
func (p *KeywordApproval) Approve(evaluation string) bool {
	text := strings.ToLower(strings.TrimSpace(evaluation))
	if text == "" {
		return false
	}
	for _, phrase := range p.RejectPhrases {
		if strings.Contains(text, phrase) {
			return false
		}
	}
	return true
}

// PolicyByName maps a configuration value to a policy. Unknown names get
// the keyword policy.
func PolicyByName(name string) ApprovalPolicy {
	switch name {
	case "always":
		return AlwaysApprove{}
	default:
		return NewKeywordApproval()
	}
}
