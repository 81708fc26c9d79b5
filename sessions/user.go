package sessions

// User is the profile of the signed-in user, cached alongside the tokens.
type User struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Picture   string `json:"picture,omitempty"`
	Status    string `json:"status,omitempty"`
}
