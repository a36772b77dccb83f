package model

// Organization is a customer org resolved by a lookup. The balance is the
// reconciled wallet balance, not the raw embedded sub-total; it is mutated
// only by re-fetching from the billing backend after a settlement.
type Organization struct {
	ID             string // internal (mongo-style) id
	OrgID          string
	Name           string
	Balance        int64 // signed, VND integer units
	CurrentPackage string

	TaxCode      string
	Address      string
	CustomerCode string
	ContractCode string

	// Optional linked identities carried through from the lookup response.
	User      *Member
	Affiliate *Member
}

// Member is an org member (or the operator's own identity) as returned by
// the membership and current-user RPCs. Only the fields the console needs.
type Member struct {
	UserID      string `json:"user_id"`
	FullName    string `json:"full_name"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Role        string `json:"role,omitempty"`
	IsAdmin     bool   `json:"is_admin,omitempty"`
	AliasCode   string `json:"alias_code,omitempty"`
	AffiliateID string `json:"affiliate_id,omitempty"`
	FBStaffID   string `json:"fb_staff_id,omitempty"`
}

// Ref returns the attribution string recorded in transaction meta for this
// member: alias code when present, otherwise the user id.
func (m *Member) Ref() string {
	if m == nil {
		return ""
	}
	if m.AliasCode != "" {
		return m.AliasCode
	}
	return m.UserID
}

// DefaultMember picks the representative member for an org: the org's own
// linked user if it appears in the list, else the first admin, else the
// first member.
func DefaultMember(members []*Member, orgUser *Member) *Member {
	if len(members) == 0 {
		return nil
	}
	if orgUser != nil {
		for _, m := range members {
			if m.UserID == orgUser.UserID || (m.FBStaffID != "" && m.FBStaffID == orgUser.FBStaffID) {
				return m
			}
		}
	}
	for _, m := range members {
		if m.Role == "ADMIN" || m.IsAdmin {
			return m
		}
	}
	return members[0]
}
