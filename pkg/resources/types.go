package resources

import "time"

// User is a console account.
type User struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name,omitempty"`
	IsAdmin bool   `json:"is_admin,omitempty"`
}

// ClientRef is the client summary embedded in a permission.
type ClientRef struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	OrganizationID string `json:"organization_id,omitempty"`
}

// Permission grants a user a role on a client.
type Permission struct {
	Client ClientRef `json:"client"`
	Role   string    `json:"role"`
}

// Organization groups clients for billing.
type Organization struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Membership links a user to an organization.
type Membership struct {
	Organization Organization `json:"organization"`
	Role         string       `json:"role,omitempty"`
}

// Client is a team the user can work in.
type Client struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	OrganizationID string `json:"organization_id,omitempty"`
	Plan           string `json:"plan,omitempty"`
}

// TokenDetail describes the API token the session authenticates with.
type TokenDetail struct {
	ID        string     `json:"id"`
	Name      string     `json:"name,omitempty"`
	UserID    string     `json:"user_id,omitempty"`
	Scopes    []string   `json:"scopes,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Counts are usage totals for a client.
type Counts struct {
	Experiments int `json:"experiments"`
	Resources   int `json:"resources"`
	Members     int `json:"members"`
}

// Experiment is a client experiment as listed by the API.
type Experiment struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// ImpersonationToken lets an admin act as another user.
type ImpersonationToken struct {
	UserID    string     `json:"user_id"`
	APIToken  string     `json:"api_token"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}
