package auth

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Users is a file-backed credential set for HTTP Basic authentication.
//
// File format, one user per line:
//
//	name:bcrypt-hash:group1,group2
//
// Blank lines and lines starting with # are skipped.
type Users struct {
	byName map[string]fileUser
}

type fileUser struct {
	hash   []byte
	groups []string
}

// EmptyUsers returns a credential set that rejects everyone. Used when no
// users file is configured, leaving the directory read-only.
func EmptyUsers() *Users {
	return &Users{byName: make(map[string]fileUser)}
}

// LoadUsers reads a credentials file.
func LoadUsers(path string) (*Users, error) {
	file, err := os.Open(path) //#nosec G304 -- Credentials file path from config is expected
	if err != nil {
		return nil, fmt.Errorf("open users file: %w", err)
	}
	defer file.Close()

	users := &Users{byName: make(map[string]fileUser)}

	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, ":", 3)
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid users file format at line %d", lineNum)
		}

		var groups []string
		if len(parts) == 3 {
			for _, g := range strings.Split(parts[2], ",") {
				if g = strings.TrimSpace(g); g != "" {
					groups = append(groups, g)
				}
			}
		}

		users.byName[parts[0]] = fileUser{
			hash:   []byte(parts[1]),
			groups: groups,
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read users file: %w", err)
	}

	return users, nil
}

// Authenticate verifies a name/password pair and returns the caller
// identity on success.
func (u *Users) Authenticate(name, password string) (*User, bool) {
	fu, ok := u.byName[name]
	if !ok {
		// Burn a comparison anyway so missing and present names take
		// comparable time.
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, false
	}
	if bcrypt.CompareHashAndPassword(fu.hash, []byte(password)) != nil {
		return nil, false
	}
	return &User{Name: name, Groups: fu.groups}, true
}

// Len returns the number of loaded users.
func (u *Users) Len() int {
	return len(u.byName)
}

// dummyHash is a valid bcrypt hash of an unguessable value, used to equalize
// timing for unknown names.
var dummyHash = func() []byte {
	h, err := bcrypt.GenerateFromPassword([]byte("channelfinder-dummy"), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return h
}()

// HashPassword produces a bcrypt hash suitable for the users file.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}
