package models

import "time"

// Admin is a row of the admins table, keyed by the auth user id.
type Admin struct {
	ID             string `json:"id"`
	FullName       string `json:"full_name"`
	Address        string `json:"address"`
	DateOfBirth    string `json:"date_of_birth"`
	Phone          string `json:"phone"`
	ProfilePicture string `json:"profile_picture"`
}

// AdminFromRecord reads an admins row.
func AdminFromRecord(r Record) Admin {
	return Admin{
		ID:             r.ID(),
		FullName:       r.Text("full_name"),
		Address:        r.Text("address"),
		DateOfBirth:    r.Text("date_of_birth"),
		Phone:          r.Text("phone"),
		ProfilePicture: r.Text("profile_picture"),
	}
}

// Fields returns the updatable columns of the profile.
func (a Admin) Fields() map[string]any {
	return map[string]any{
		"full_name":       a.FullName,
		"address":         a.Address,
		"date_of_birth":   a.DateOfBirth,
		"phone":           a.Phone,
		"profile_picture": a.ProfilePicture,
	}
}

// MissingFields lists the profile columns that are still blank.
func (a Admin) MissingFields() []string {
	var missing []string
	for _, f := range []struct {
		name, value string
	}{
		{"full_name", a.FullName},
		{"date_of_birth", a.DateOfBirth},
		{"address", a.Address},
		{"phone", a.Phone},
		{"profile_picture", a.ProfilePicture},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// Notification is a row of the notifications table shown in the mobile app.
type Notification struct {
	ProfileID string    `json:"profile_id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Row converts the notification to an insertable row.
func (n Notification) Row() map[string]any {
	return map[string]any{
		"profile_id": n.ProfileID,
		"type":       n.Type,
		"title":      n.Title,
		"message":    n.Message,
		"created_at": n.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// User is an authenticated identity.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session binds an opaque token to an authenticated admin.
type Session struct {
	Token     string    `json:"token"`
	User      User      `json:"user"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session has passed its expiry.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}
