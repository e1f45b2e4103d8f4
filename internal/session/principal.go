package session

// Principal is the authenticated user returned by the whoami endpoint.
type Principal struct {
	Href        string   `json:"href,omitempty"`
	Username    string   `json:"username,omitempty"`
	Email       string   `json:"email,omitempty"`
	GivenName   string   `json:"givenName,omitempty"`
	Surname     string   `json:"surname,omitempty"`
	Groups      []string `json:"groups,omitempty"`
	Authorities []string `json:"authorities,omitempty"`
}

// InGroup reports whether the principal belongs to the named group. Role
// authorities count as groups so that routes declaring either style of
// requirement work against the same principal.
func (p *Principal) InGroup(name string) bool {
	if p == nil {
		return false
	}
	for _, group := range p.Groups {
		if group == name {
			return true
		}
	}
	for _, authority := range p.Authorities {
		if authority == name {
			return true
		}
	}
	return false
}

// HasAnyGroup reports whether the principal belongs to at least one of the
// named groups.
func (p *Principal) HasAnyGroup(names []string) bool {
	for _, name := range names {
		if p.InGroup(name) {
			return true
		}
	}
	return false
}
