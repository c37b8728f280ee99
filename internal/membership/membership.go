// Package membership persists a set of requester identities with their display
// profiles as one indented JSON object keyed by the stringified id.
//
// A Set is not safe for concurrent use; callers serialize access.
package membership

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"sort"
	"strconv"
)

// Unknown fills profile fields the chat transport did not provide.
const Unknown = "Unknown"

// ID is an opaque requester identity.
type ID int64

func (id ID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseID parses a stringified identity.
func ParseID(s string) (ID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse identity %q: %w", s, err)
	}
	return ID(n), nil
}

// Profile is the display snapshot recorded with an identity.
type Profile struct {
	ID        ID     `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
	Locale    string `json:"language"`
}

// NewProfile builds a Profile, defaulting absent fields to Unknown. A present
// username is stored with its @ prefix.
func NewProfile(id ID, firstName, lastName, username, locale string) Profile {
	p := Profile{
		ID:        id,
		FirstName: orUnknown(firstName),
		LastName:  orUnknown(lastName),
		Username:  Unknown,
		Locale:    orUnknown(locale),
	}
	if username != "" {
		p.Username = "@" + username
	}
	return p
}

func orUnknown(s string) string {
	if s == "" {
		return Unknown
	}
	return s
}

// Set is one persisted membership file.
type Set struct {
	path    string
	members map[string]Profile
}

// Load reads the set stored at path. A missing file is an empty set. A file
// that cannot be parsed is logged and treated as empty; the next Save
// overwrites it.
func Load(path string) (*Set, error) {
	s := &Set{path: path, members: make(map[string]Profile)}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &s.members); err != nil {
		log.Printf("membership: %s unparsable, starting empty: %v", path, err)
		s.members = make(map[string]Profile)
	}
	if s.members == nil {
		s.members = make(map[string]Profile)
	}
	return s, nil
}

// Path returns the backing file.
func (s *Set) Path() string {
	return s.path
}

// Contains reports whether id is a member.
func (s *Set) Contains(id ID) bool {
	_, ok := s.members[id.String()]
	return ok
}

// Get returns the recorded profile of id.
func (s *Set) Get(id ID) (Profile, bool) {
	p, ok := s.members[id.String()]
	return p, ok
}

// Add records id with its profile. A profile already recorded is kept.
func (s *Set) Add(id ID, p Profile) {
	if _, ok := s.members[id.String()]; ok {
		return
	}
	s.members[id.String()] = p
}

// Remove deletes id.
func (s *Set) Remove(id ID) {
	delete(s.members, id.String())
}

// Len returns the number of members.
func (s *Set) Len() int {
	return len(s.members)
}

// IDs returns the members in ascending order.
func (s *Set) IDs() []ID {
	ids := make([]ID, 0, len(s.members))
	for k := range s.members {
		id, err := ParseID(k)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Save rewrites the whole file.
func (s *Set) Save() error {
	data, err := json.MarshalIndent(s.members, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", s.path, err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	return nil
}
