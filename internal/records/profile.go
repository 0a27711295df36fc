package records

import "strings"

// Profile is the deep profile record stored next to the identity provider's user.
type Profile struct {
	ID         string
	Email      string
	Name       string
	Role       string
	IsAdmin    bool
	Company    string
	Headline   string
	Location   string
	AvatarURL  string
	Bio        string
	Skills     []string
	Experience string
}

type ProfileRow struct {
	ID          string   `mapstructure:"id" json:"id"`
	Email       string   `mapstructure:"email" json:"email"`
	FullName    string   `mapstructure:"full_name" json:"full_name"`
	Role        string   `mapstructure:"role" json:"role"`
	IsAdmin     bool     `mapstructure:"is_admin" json:"is_admin"`
	CompanyName string   `mapstructure:"company_name" json:"company_name"`
	Headline    string   `mapstructure:"headline" json:"headline"`
	Location    string   `mapstructure:"location" json:"location"`
	AvatarURL   string   `mapstructure:"avatar_url" json:"avatar_url"`
	Bio         string   `mapstructure:"bio" json:"bio"`
	Skills      []string `mapstructure:"skills" json:"skills"`
	Experience  string   `mapstructure:"experience" json:"experience"`
}

func (r ProfileRow) Profile() Profile {
	skills := make([]string, 0, len(r.Skills))
	for _, s := range r.Skills {
		if s = strings.TrimSpace(s); s != "" {
			skills = append(skills, s)
		}
	}

	return Profile{
		ID:         r.ID,
		Email:      strings.TrimSpace(r.Email),
		Name:       strings.TrimSpace(r.FullName),
		Role:       strings.ToLower(strings.TrimSpace(r.Role)),
		IsAdmin:    r.IsAdmin,
		Company:    r.CompanyName,
		Headline:   r.Headline,
		Location:   r.Location,
		AvatarURL:  r.AvatarURL,
		Bio:        r.Bio,
		Skills:     skills,
		Experience: r.Experience,
	}
}
