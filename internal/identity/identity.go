package identity

import (
	"strings"

	"github.com/spigell/hirewire/internal/auth"
	"github.com/spigell/hirewire/internal/records"
)

type Role string

const (
	RoleSeeker   Role = "seeker"
	RoleEmployer Role = "employer"
	RoleAdmin    Role = "admin"
)

// ParseRole normalises a role claim. Anything unrecognised is a seeker.
func ParseRole(s string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleEmployer:
		return RoleEmployer
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleSeeker
	}
}

// Identity is the local view of the signed-in principal, or the guest.
type Identity struct {
	ID            string
	Email         string
	Name          string
	Role          Role
	IsAdmin       bool
	Authenticated bool

	Company   string
	Headline  string
	Location  string
	AvatarURL string
	Bio       string
	Skills    []string
}

// Guest is the anonymous identity used before sign-in and after sign-out.
func Guest() Identity {
	return Identity{Name: "Guest", Role: RoleSeeker}
}

// IsGuest is true for anything that cannot act on behalf of a user.
func (i Identity) IsGuest() bool {
	return !i.Authenticated || i.ID == "" || i.Email == ""
}

// Admin reports admin rights from either the flag or the role.
func (i Identity) Admin() bool {
	return i.IsAdmin || i.Role == RoleAdmin
}

// FromClaims builds the provisional identity available right after authentication.
func FromClaims(c auth.Claims) Identity {
	name := strings.TrimSpace(c.Metadata.FullName)
	if name == "" {
		name = emailLocalPart(c.Email)
	}

	return Identity{
		ID:            c.Subject,
		Email:         strings.TrimSpace(c.Email),
		Name:          name,
		Role:          ParseRole(c.Metadata.Role),
		IsAdmin:       c.Metadata.IsAdmin,
		Authenticated: c.Subject != "",
	}
}

// Merge overlays a deep profile. Name and role come from the profile when
// it has them and the admin flag always does. ID and email never change, and
// local values stay where the profile is blank.
func (i Identity) Merge(p records.Profile) Identity {
	merged := i

	if v := strings.TrimSpace(p.Name); v != "" {
		merged.Name = v
	}
	if strings.TrimSpace(p.Role) != "" {
		merged.Role = ParseRole(p.Role)
	}
	// Metadata is editable by the user, only the profile row grants admin.
	merged.IsAdmin = p.IsAdmin

	merged.Company = prefer(p.Company, i.Company)
	merged.Headline = prefer(p.Headline, i.Headline)
	merged.Location = prefer(p.Location, i.Location)
	merged.AvatarURL = prefer(p.AvatarURL, i.AvatarURL)
	merged.Bio = prefer(p.Bio, i.Bio)
	if len(p.Skills) > 0 {
		merged.Skills = append([]string(nil), p.Skills...)
	}

	return merged
}

// Profile renders the identity as a profile record, for AI prompts and joins.
func (i Identity) Profile() records.Profile {
	return records.Profile{
		ID:        i.ID,
		Email:     i.Email,
		Name:      i.Name,
		Role:      string(i.Role),
		IsAdmin:   i.IsAdmin,
		Company:   i.Company,
		Headline:  i.Headline,
		Location:  i.Location,
		AvatarURL: i.AvatarURL,
		Bio:       i.Bio,
		Skills:    append([]string(nil), i.Skills...),
	}
}

func prefer(remote, local string) string {
	if v := strings.TrimSpace(remote); v != "" {
		return v
	}
	return local
}

func emailLocalPart(email string) string {
	email = strings.TrimSpace(email)
	if at := strings.IndexByte(email, '@'); at > 0 {
		return email[:at]
	}
	return email
}
