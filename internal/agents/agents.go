package agents

import (
	"fmt"
)

// Agent role names, in pipeline order.
const (
	RoleGreeter      = "greeter"
	RoleResearcher   = "researcher"
	RoleScreenwriter = "screenwriter"
	RoleCritic       = "critic"
)

// State keys each role's output is merged under.
const (
	KeyGreeting = "greeting_response"
	KeyResearch = "research_response"
	KeyOutline  = "plot_outline"
	KeyCritique = "critique"
)

// Role is a uniform agent descriptor. All four roles are normalized into
// this shape at startup; call sites never branch on representation.
type Role struct {
	Name        string
	Model       string
	Instruction string
	OutputKey   string
}

// Registry holds the fixed pipeline roles in execution order.
type Registry struct {
	roles []Role
	index map[string]Role
}

// MissingContextError reports that a role's input depends on a predecessor
// output that is not present in the accumulated state. Step ordering
// guarantees this never happens in a correct pipeline, so it signals a
// defect rather than a runtime condition to absorb.
type MissingContextError struct {
	Role string
	Key  string
}

func (e *MissingContextError) Error() string {
	return fmt.Sprintf("agent %s requires state key %q which is not set", e.Role, e.Key)
}

// ModelRouter resolves the model name for a role. Matches
// config.LLMRoutingConfig.ModelFor.
type ModelRouter interface {
	ModelFor(role string) string
}

// NewRegistry builds the four-role pipeline with models resolved through
// the router. The order is fixed: greeter, researcher, screenwriter, critic.
func NewRegistry(router ModelRouter) *Registry {
	roles := []Role{
		{Name: RoleGreeter, Model: router.ModelFor(RoleGreeter), Instruction: greeterInstruction, OutputKey: KeyGreeting},
		{Name: RoleResearcher, Model: router.ModelFor(RoleResearcher), Instruction: researcherInstruction, OutputKey: KeyResearch},
		{Name: RoleScreenwriter, Model: router.ModelFor(RoleScreenwriter), Instruction: screenwriterInstruction, OutputKey: KeyOutline},
		{Name: RoleCritic, Model: router.ModelFor(RoleCritic), Instruction: criticInstruction, OutputKey: KeyCritique},
	}
	idx := make(map[string]Role, len(roles))
	for _, r := range roles {
		idx[r.Name] = r
	}
	return &Registry{roles: roles, index: idx}
}

// Roles returns the pipeline roles in execution order.
func (g *Registry) Roles() []Role {
	out := make([]Role, len(g.roles))
	copy(out, g.roles)
	return out
}

// Lookup returns the role descriptor by name.
func (g *Registry) Lookup(name string) (Role, bool) {
	r, ok := g.index[name]
	return r, ok
}

// Render builds the input text for a role from the user message and
// accumulated state. Roles depending on a predecessor output fail with
// MissingContextError when the key is absent.
func (g *Registry) Render(role string, message string, state map[string]string) (string, error) {
	switch role {
	case RoleGreeter:
		return message, nil
	case RoleResearcher:
		return "Research context for: " + message, nil
	case RoleScreenwriter:
		research, ok := state[KeyResearch]
		if !ok {
			return "", &MissingContextError{Role: role, Key: KeyResearch}
		}
		return "Create a film concept based on this research:\n\n" + research, nil
	case RoleCritic:
		outline, ok := state[KeyOutline]
		if !ok {
			return "", &MissingContextError{Role: role, Key: KeyOutline}
		}
		return "Critique this film concept:\n\n" + outline, nil
	default:
		return "", fmt.Errorf("unknown agent role: %s", role)
	}
}
