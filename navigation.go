package session

// MenuItem is a navigation entry gated by roles. RoleAny makes it visible to
// every authenticated principal.
type MenuItem struct {
	Label string `json:"label"`
	Path  string `json:"path"`
	Roles []Role `json:"roles"`
}

// VisibleTo reports whether p may see the entry.
func (m MenuItem) VisibleTo(p *Principal) bool {
	if !p.IsAuthenticated() {
		return false
	}
	if NewRoleSet(m.Roles...).Has(RoleAny) {
		return true
	}
	return Authorize(p, m.Roles)
}

// VisibleMenu filters items down to what p may see, keeping their order.
func VisibleMenu(p *Principal, items []MenuItem) []MenuItem {
	out := make([]MenuItem, 0, len(items))
	for _, item := range items {
		if item.VisibleTo(p) {
			out = append(out, item)
		}
	}
	return out
}
