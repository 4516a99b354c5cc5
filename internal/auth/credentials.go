package auth

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"bookinventory/internal/platform/crypto"
)

const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

var ErrInvalidCredentialConfig = errors.New("invalid credential configuration")

// User is a configured account. PasswordHash is a bcrypt hash.
type User struct {
	Username     string   `yaml:"username"`
	PasswordHash string   `yaml:"password_hash"`
	Roles        []string `yaml:"roles"`
}

type credentialsFile struct {
	Users []User `yaml:"users"`
}

// CredentialStore is an immutable set of users keyed by username.
type CredentialStore struct {
	users map[string]User
}

// NewCredentialStore validates users and indexes them. Role names are
// upper-cased and ADMIN implies USER.
func NewCredentialStore(users ...User) (*CredentialStore, error) {
	cs := &CredentialStore{users: make(map[string]User, len(users))}
	for _, u := range users {
		u.Username = strings.TrimSpace(u.Username)
		if u.Username == "" {
			return nil, fmt.Errorf("%w: empty username", ErrInvalidCredentialConfig)
		}
		if _, dup := cs.users[u.Username]; dup {
			return nil, fmt.Errorf("%w: duplicate user %q", ErrInvalidCredentialConfig, u.Username)
		}
		if !crypto.IsPasswordHash(u.PasswordHash) {
			return nil, fmt.Errorf("%w: user %q: password_hash is not a bcrypt hash", ErrInvalidCredentialConfig, u.Username)
		}
		roles, err := normalizeRoles(u.Roles)
		if err != nil {
			return nil, fmt.Errorf("%w: user %q: %v", ErrInvalidCredentialConfig, u.Username, err)
		}
		u.Roles = roles
		cs.users[u.Username] = u
	}
	return cs, nil
}

// LoadCredentialsFile reads a YAML document of the form
//
//	users:
//	  - username: admin
//	    password_hash: $2a$10$...
//	    roles: [ADMIN]
func LoadCredentialsFile(path string) (*CredentialStore, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read credentials file: %w", err)
	}
	var doc credentialsFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentialConfig, err)
	}
	return NewCredentialStore(doc.Users...)
}

// ParseCredentials reads the compact env form
// "name:bcrypthash:ROLE1|ROLE2,name2:hash2:ROLE".
func ParseCredentials(entries string) (*CredentialStore, error) {
	var users []User
	for entry := range strings.SplitSeq(entries, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("%w: entry %q must be name:hash:roles", ErrInvalidCredentialConfig, entry)
		}
		users = append(users, User{
			Username:     parts[0],
			PasswordHash: parts[1],
			Roles:        strings.Split(parts[2], "|"),
		})
	}
	return NewCredentialStore(users...)
}

// LoadCredentials prefers the file when both sources are configured.
func LoadCredentials(file, env string) (*CredentialStore, error) {
	if file != "" {
		return LoadCredentialsFile(file)
	}
	return ParseCredentials(env)
}

func (cs *CredentialStore) Lookup(username string) (User, bool) {
	u, ok := cs.users[username]
	return u, ok
}

func (cs *CredentialStore) Len() int {
	return len(cs.users)
}

func normalizeRoles(in []string) ([]string, error) {
	var roles []string
	for _, r := range in {
		r = strings.ToUpper(strings.TrimSpace(r))
		switch r {
		case "":
			continue
		case RoleAdmin, RoleUser:
		default:
			return nil, fmt.Errorf("unknown role %q", r)
		}
		if !slices.Contains(roles, r) {
			roles = append(roles, r)
		}
	}
	if len(roles) == 0 {
		return nil, errors.New("no roles")
	}
	if slices.Contains(roles, RoleAdmin) && !slices.Contains(roles, RoleUser) {
		roles = append(roles, RoleUser)
	}
	slices.Sort(roles)
	return roles, nil
}
