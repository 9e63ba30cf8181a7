package agents

import (
	"errors"
	"strings"
	"testing"
)

type staticRouter struct{ model string }

func (r staticRouter) ModelFor(string) string { return r.model }

func TestRegistryOrder(t *testing.T) {
	reg := NewRegistry(staticRouter{model: "gpt-4o-mini"})
	roles := reg.Roles()
	want := []string{RoleGreeter, RoleResearcher, RoleScreenwriter, RoleCritic}
	if len(roles) != len(want) {
		t.Fatalf("expected %d roles got %d", len(want), len(roles))
	}
	for i, name := range want {
		if roles[i].Name != name {
			t.Fatalf("role[%d] = %s, want %s", i, roles[i].Name, name)
		}
		if roles[i].Model != "gpt-4o-mini" {
			t.Fatalf("role %s model not routed: %q", name, roles[i].Model)
		}
		if roles[i].Instruction == "" {
			t.Fatalf("role %s has no instruction", name)
		}
		if roles[i].OutputKey == "" {
			t.Fatalf("role %s has no output key", name)
		}
	}
}

func TestRenderGreeterPassesMessageThrough(t *testing.T) {
	reg := NewRegistry(staticRouter{})
	got, err := reg.Render(RoleGreeter, "Tell a story about Ada Lovelace", nil)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "Tell a story about Ada Lovelace" {
		t.Fatalf("unexpected greeter input: %q", got)
	}
}

func TestRenderResearcherPrefix(t *testing.T) {
	reg := NewRegistry(staticRouter{})
	got, err := reg.Render(RoleResearcher, "Ada Lovelace", nil)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "Research context for: Ada Lovelace" {
		t.Fatalf("unexpected researcher input: %q", got)
	}
}

func TestRenderScreenwriterUsesResearch(t *testing.T) {
	reg := NewRegistry(staticRouter{})
	state := map[string]string{KeyResearch: "Born 1815, daughter of Byron."}
	got, err := reg.Render(RoleScreenwriter, "ignored", state)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(got, "Born 1815, daughter of Byron.") {
		t.Fatalf("research not included: %q", got)
	}
	if !strings.HasPrefix(got, "Create a film concept based on this research:") {
		t.Fatalf("unexpected prefix: %q", got)
	}
}

func TestRenderCriticUsesOutline(t *testing.T) {
	reg := NewRegistry(staticRouter{})
	state := map[string]string{KeyOutline: "Act one: the algorithm."}
	got, err := reg.Render(RoleCritic, "ignored", state)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(got, "Act one: the algorithm.") {
		t.Fatalf("outline not included: %q", got)
	}
}

func TestRenderMissingContext(t *testing.T) {
	reg := NewRegistry(staticRouter{})
	_, err := reg.Render(RoleScreenwriter, "x", map[string]string{})
	var mc *MissingContextError
	if !errors.As(err, &mc) {
		t.Fatalf("expected MissingContextError, got %v", err)
	}
	if mc.Key != KeyResearch {
		t.Fatalf("unexpected missing key: %s", mc.Key)
	}

	_, err = reg.Render(RoleCritic, "x", map[string]string{})
	if !errors.As(err, &mc) {
		t.Fatalf("expected MissingContextError, got %v", err)
	}
}

func TestRenderUnknownRole(t *testing.T) {
	reg := NewRegistry(staticRouter{})
	if _, err := reg.Render("producer", "x", nil); err == nil {
		t.Fatal("expected error for unknown role")
	}
}
