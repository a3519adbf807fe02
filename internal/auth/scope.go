package auth

// Filter restricts list queries to the caller's visibility. An empty
// filter matches every record (platform admin).
type Filter struct {
	UserID string
	OrgID  string
}

// ListFilter derives the list-query predicate for the caller: org-wide
// for elevated roles, otherwise additionally pinned to the caller's user.
func (id Identity) ListFilter() Filter {
	if id.Role == RoleAdmin {
		return Filter{}
	}
	if id.OrgID != "" {
		if id.Role.Elevated() {
			return Filter{OrgID: id.OrgID}
		}
		return Filter{OrgID: id.OrgID, UserID: id.UserID}
	}
	return Filter{UserID: id.UserID}
}

// Matches reports whether a record with the given owner fields falls
// inside the filter.
func (f Filter) Matches(userID, orgID string) bool {
	if f.OrgID != "" && f.OrgID != orgID {
		return false
	}
	if f.UserID != "" && f.UserID != userID {
		return false
	}
	return true
}

// CanAccess is the single authorization predicate for direct reads and
// writes: platform admins see everything, elevated roles see their org,
// everyone sees their own records.
func (id Identity) CanAccess(recordUserID, recordOrgID string) bool {
	if id.UserID == "" {
		return false
	}
	if id.Role == RoleAdmin {
		return true
	}
	if recordOrgID != "" && recordOrgID == id.OrgID && id.Role.Elevated() {
		return true
	}
	return recordUserID == id.UserID
}

// Authorize returns ErrForbidden unless the caller can access the record.
func (id Identity) Authorize(recordUserID, recordOrgID string) error {
	if !id.CanAccess(recordUserID, recordOrgID) {
		return ErrForbidden
	}
	return nil
}
