package access

import (
	"net"
	"testing"

	"github.com/guregu/null/v6"

	"github.com/beanbocchi/cumulus/internal/model"
)

func TestParseSourceIP(t *testing.T) {
	t.Run("single address", func(t *testing.T) {
		ip, err := ParseSourceIP("192.0.2.10")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !ip.Equal(net.ParseIP("192.0.2.10")) {
			t.Errorf("expected 192.0.2.10, got %v", ip)
		}
	})

	t.Run("first hop wins", func(t *testing.T) {
		ip, err := ParseSourceIP("192.0.2.10, 10.0.0.1, 10.0.0.2")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !ip.Equal(net.ParseIP("192.0.2.10")) {
			t.Errorf("expected first hop, got %v", ip)
		}
	})

	t.Run("host port form", func(t *testing.T) {
		ip, err := ParseSourceIP("192.0.2.10:5432")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !ip.Equal(net.ParseIP("192.0.2.10")) {
			t.Errorf("expected host part, got %v", ip)
		}
	})

	t.Run("empty is an error", func(t *testing.T) {
		if _, err := ParseSourceIP(""); model.KindOf(err) != model.KindClientSyntax {
			t.Errorf("expected invalid_request, got %v", err)
		}
	})

	t.Run("garbage is an error", func(t *testing.T) {
		if _, err := ParseSourceIP("not-an-address"); model.KindOf(err) != model.KindClientSyntax {
			t.Errorf("expected invalid_request, got %v", err)
		}
	})
}

func TestParseReferer(t *testing.T) {
	t.Run("absent is permitted", func(t *testing.T) {
		ref, err := ParseReferer("")
		if err != nil || ref != "" {
			t.Errorf("expected empty ok, got %q, %v", ref, err)
		}
	})

	t.Run("host and path", func(t *testing.T) {
		ref, err := ParseReferer("https://example.com/gallery/photos")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if ref != "example.com/gallery/photos" {
			t.Errorf("unexpected referer form %q", ref)
		}
	})

	t.Run("hostless is an error", func(t *testing.T) {
		if _, err := ParseReferer("/relative/only"); model.KindOf(err) != model.KindClientSyntax {
			t.Errorf("expected invalid_request, got %v", err)
		}
	})
}

func TestLoadPolicy(t *testing.T) {
	t.Run("null column means closed policy", func(t *testing.T) {
		policy, err := LoadPolicy(null.String{})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		decision := Evaluate(model.Read, policy, Context{SourceIP: net.ParseIP("192.0.2.1")})
		if decision.Granted || decision.RequiresSecondaryAuth {
			t.Error("expected default deny under empty policy")
		}
	})

	t.Run("malformed json", func(t *testing.T) {
		if _, err := LoadPolicy(null.StringFrom("{not json")); err == nil {
			t.Fatal("expected error for malformed policy")
		}
	})
}

func evalPolicy(t *testing.T, raw string, required model.AccessLevel, rctx Context) model.AccessDecision {
	t.Helper()
	policy, err := LoadPolicy(null.StringFrom(raw))
	if err != nil {
		t.Fatalf("failed to load policy: %v", err)
	}
	return Evaluate(required, policy, rctx)
}

func TestEvaluate(t *testing.T) {
	t.Run("no access required bypasses policy", func(t *testing.T) {
		decision := Evaluate(model.NoAccess, &Policy{}, Context{})
		if !decision.Granted {
			t.Error("expected no-access operations to pass")
		}
	})

	t.Run("ip allow rule grants", func(t *testing.T) {
		raw := `{"ip_rules":[{"cidr":"192.0.2.0/24","allow":true,"level":"write"}]}`
		decision := evalPolicy(t, raw, model.Write, Context{SourceIP: net.ParseIP("192.0.2.77")})
		if !decision.Granted {
			t.Errorf("expected grant, got %+v", decision)
		}
	})

	t.Run("ip allow rule below required level falls through", func(t *testing.T) {
		raw := `{"ip_rules":[{"cidr":"192.0.2.0/24","allow":true,"level":"read"}]}`
		decision := evalPolicy(t, raw, model.Delete, Context{SourceIP: net.ParseIP("192.0.2.77")})
		if decision.Granted {
			t.Error("read-level rule must not grant delete")
		}
	})

	t.Run("ip deny rule wins regardless of later rules", func(t *testing.T) {
		raw := `{"ip_rules":[
			{"cidr":"192.0.2.0/24","allow":false},
			{"cidr":"192.0.0.0/16","allow":true}
		]}`
		decision := evalPolicy(t, raw, model.Read, Context{SourceIP: net.ParseIP("192.0.2.77")})
		if decision.Granted {
			t.Error("expected first-match deny")
		}
	})

	t.Run("non-matching cidr is skipped", func(t *testing.T) {
		raw := `{"ip_rules":[
			{"cidr":"10.0.0.0/8","allow":false},
			{"cidr":"192.0.2.0/24","allow":true}
		]}`
		decision := evalPolicy(t, raw, model.Read, Context{SourceIP: net.ParseIP("192.0.2.77")})
		if !decision.Granted {
			t.Errorf("expected grant from second rule, got %+v", decision)
		}
	})

	t.Run("referer glob grants", func(t *testing.T) {
		raw := `{"referer_rules":[{"pattern":"example.com/*","level":"read"}]}`
		decision := evalPolicy(t, raw, model.Read, Context{Referer: "example.com/photos"})
		if !decision.Granted {
			t.Errorf("expected grant, got %+v", decision)
		}
	})

	t.Run("referer not consulted when absent", func(t *testing.T) {
		raw := `{"referer_rules":[{"pattern":"*"}]}`
		decision := evalPolicy(t, raw, model.Read, Context{})
		if decision.Granted {
			t.Error("absent referer must not match referer rules")
		}
	})

	t.Run("password fallback requests secondary auth", func(t *testing.T) {
		raw := `{"require_password":true}`
		decision := evalPolicy(t, raw, model.Write, Context{SourceIP: net.ParseIP("203.0.113.1")})
		if decision.Granted {
			t.Error("password fallback must not grant outright")
		}
		if !decision.RequiresSecondaryAuth {
			t.Errorf("expected secondary auth, got %+v", decision)
		}
	})

	t.Run("no rule matched is default deny", func(t *testing.T) {
		raw := `{"ip_rules":[{"cidr":"10.0.0.0/8","allow":true}]}`
		decision := evalPolicy(t, raw, model.Read, Context{SourceIP: net.ParseIP("203.0.113.1")})
		if decision.Granted || decision.RequiresSecondaryAuth {
			t.Errorf("expected default deny, got %+v", decision)
		}
	})

	t.Run("unnamed level grants everything", func(t *testing.T) {
		raw := `{"ip_rules":[{"cidr":"192.0.2.0/24","allow":true}]}`
		decision := evalPolicy(t, raw, model.Delete, Context{SourceIP: net.ParseIP("192.0.2.1")})
		if !decision.Granted {
			t.Errorf("expected grant, got %+v", decision)
		}
	})
}
