// Package access implements the pure decision function gating every request
// against a collection's access policy.
package access

import (
	"net"
	"net/url"
	"path"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/guregu/null/v6"

	"github.com/beanbocchi/cumulus/internal/model"
)

var (
	errNoForwardedFor = model.NewError(model.KindClientSyntax, "access.forwarded_for", "no forwarded address header present")
	errBadSourceIP    = model.NewError(model.KindClientSyntax, "access.source_ip", "unable to parse source address %q")
	errBadReferer     = model.NewError(model.KindClientSyntax, "access.referer", "unable to parse referer %q")
	errBadPolicy      = model.NewError(model.KindInternal, "access.policy", "unable to load access control policy: %s")
)

// IPRule matches the request source address against a CIDR block. An allow
// rule grants up to Level; a deny rule forbids regardless of level.
type IPRule struct {
	CIDR  string `json:"cidr"`
	Allow bool   `json:"allow"`
	Level string `json:"level,omitempty"`
}

// RefererRule grants up to Level when the referer host/path matches Pattern
// (path.Match glob over host+path).
type RefererRule struct {
	Pattern string `json:"pattern"`
	Level   string `json:"level"`
}

// Policy is a collection's ordered access rule set. Evaluation is
// first-match in fixed precedence: IP rules, then referer rules, then the
// password fallback, then default deny.
type Policy struct {
	Version         string        `json:"version"`
	IPRules         []IPRule      `json:"ip_rules"`
	RefererRules    []RefererRule `json:"referer_rules"`
	RequirePassword bool          `json:"require_password"`
}

// LoadPolicy unmarshals a collection row's access_control column. A missing
// policy yields the empty policy (default deny for anything above NoAccess).
func LoadPolicy(raw null.String) (*Policy, error) {
	if !raw.Valid || raw.String == "" {
		return &Policy{}, nil
	}
	var p Policy
	if err := sonic.UnmarshalString(raw.String, &p); err != nil {
		return nil, errBadPolicy.Fmt(err)
	}
	return &p, nil
}

// Context carries the request attributes the policy rules match against.
type Context struct {
	SourceIP net.IP
	Referer  string
	Password null.String
}

// ParseSourceIP extracts the original sender from a trusted forwarded-address
// header. The header can carry multiple hops; the first one is the client.
func ParseSourceIP(forwardedFor string) (net.IP, error) {
	if forwardedFor == "" {
		return nil, errNoForwardedFor
	}

	first := strings.TrimSpace(strings.Split(forwardedFor, ",")[0])
	if host, _, err := net.SplitHostPort(first); err == nil {
		first = host
	}

	ip := net.ParseIP(first)
	if ip == nil {
		return nil, errBadSourceIP.Fmt(forwardedFor)
	}
	return ip, nil
}

// ParseReferer validates an optional referer header. Absent is permitted;
// malformed is a client error.
func ParseReferer(referer string) (string, error) {
	if referer == "" {
		return "", nil
	}
	u, err := url.Parse(referer)
	if err != nil || u.Host == "" {
		return "", errBadReferer.Fmt(referer)
	}
	return u.Host + u.Path, nil
}

// Evaluate decides whether a request may perform an action requiring the
// given level. It is pure and safe for unlimited concurrent use.
func Evaluate(required model.AccessLevel, policy *Policy, rctx Context) model.AccessDecision {
	if required == model.NoAccess {
		return model.AccessDecision{Granted: true, Reason: "no access required"}
	}

	for _, rule := range policy.IPRules {
		_, block, err := net.ParseCIDR(rule.CIDR)
		if err != nil || rctx.SourceIP == nil || !block.Contains(rctx.SourceIP) {
			continue
		}
		if !rule.Allow {
			return model.AccessDecision{Reason: "source address denied by policy"}
		}
		if levelCovers(rule.Level, required) {
			return model.AccessDecision{Granted: true, Reason: "source address allowed by policy"}
		}
	}

	if rctx.Referer != "" {
		for _, rule := range policy.RefererRules {
			matched, err := path.Match(rule.Pattern, rctx.Referer)
			if err != nil || !matched {
				continue
			}
			if levelCovers(rule.Level, required) {
				return model.AccessDecision{Granted: true, Reason: "referer allowed by policy"}
			}
		}
	}

	if policy.RequirePassword {
		return model.AccessDecision{RequiresSecondaryAuth: true, Reason: "policy requires password authentication"}
	}

	return model.AccessDecision{Reason: "no rule matched"}
}

// levelCovers reports whether a rule granting the named level covers the
// required one. An unnamed level grants everything.
func levelCovers(name string, required model.AccessLevel) bool {
	if name == "" {
		return true
	}
	granted, err := model.ParseAccessLevel(name)
	if err != nil {
		return false
	}
	return required <= granted
}
