package presence

import "github.com/BioHazard786/huddle/internal/protocol"

// Room is one entry of the room registry. UserCount always equals
// len(Users).
type Room struct {
	ID          string
	Name        string
	Description string
	Users       []protocol.User
	UserCount   int
}

// DefaultCatalog is the room list offered when none is configured.
var DefaultCatalog = []Room{
	{ID: "general", Name: "General", Description: "General discussion room"},
	{ID: "tech", Name: "Technology", Description: "Tech talk and discussions"},
	{ID: "random", Name: "Random", Description: "Off-topic conversations"},
	{ID: "announcements", Name: "Announcements", Description: "Important updates"},
}

func (r *Room) clone() Room {
	c := *r
	c.Users = append([]protocol.User(nil), r.Users...)
	return c
}

// setUsers replaces the membership, collapsing duplicate entries for the
// same user, and keeps UserCount in step.
func (r *Room) setUsers(users []protocol.User) {
	seen := make(map[string]bool, len(users))
	r.Users = make([]protocol.User, 0, len(users))
	for _, u := range users {
		key := u.Key()
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		r.Users = append(r.Users, u)
	}
	r.UserCount = len(r.Users)
}

func (r *Room) has(username string) bool {
	for _, u := range r.Users {
		if u.Username == username {
			return true
		}
	}
	return false
}
