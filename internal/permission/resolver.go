package permission

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Resolver maps a username to its capability group.
// Unresolvable users yield GroupUnknown with a nil error.
type Resolver interface {
	ResolveGroup(ctx context.Context, username string) (Group, error)
}

// StaticResolver resolves groups from a fixed map, typically loaded from config.
type StaticResolver map[string]string

// ResolveGroup implements Resolver.
func (r StaticResolver) ResolveGroup(_ context.Context, username string) (Group, error) {
	g, ok := r[username]
	if !ok {
		return GroupUnknown, nil
	}
	return ParseGroup(g), nil
}

// validUsername keeps agent lookups inside the agents directory.
var validUsername = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.-]*$`)

// AgentDirResolver reads the group from <dir>/<user>.md YAML frontmatter.
type AgentDirResolver struct {
	Dir string
}

type agentFrontmatter struct {
	Name  string `yaml:"name"`
	Group string `yaml:"group"`
}

// ResolveGroup implements Resolver.
func (r AgentDirResolver) ResolveGroup(_ context.Context, username string) (Group, error) {
	if r.Dir == "" || !validUsername.MatchString(username) {
		return GroupUnknown, nil
	}

	data, err := os.ReadFile(filepath.Join(r.Dir, username+".md"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return GroupUnknown, nil
		}
		return GroupUnknown, fmt.Errorf("reading agent file: %w", err)
	}

	fm, ok := splitFrontmatter(data)
	if !ok {
		return GroupUnknown, nil
	}
	var meta agentFrontmatter
	if err := yaml.Unmarshal(fm, &meta); err != nil {
		return GroupUnknown, fmt.Errorf("parsing agent frontmatter for %s: %w", username, err)
	}
	return ParseGroup(meta.Group), nil
}

var frontmatterDelim = []byte("---")

func splitFrontmatter(data []byte) ([]byte, bool) {
	data = bytes.TrimPrefix(data, []byte("\ufeff"))
	if !bytes.HasPrefix(data, frontmatterDelim) {
		return nil, false
	}
	rest := data[len(frontmatterDelim):]
	end := bytes.Index(rest, append([]byte("\n"), frontmatterDelim...))
	if end < 0 {
		return nil, false
	}
	return rest[:end], true
}

// ChainResolver returns the first known group from its resolvers.
type ChainResolver []Resolver

// ResolveGroup implements Resolver.
func (c ChainResolver) ResolveGroup(ctx context.Context, username string) (Group, error) {
	for _, r := range c {
		g, err := r.ResolveGroup(ctx, username)
		if err != nil {
			return GroupUnknown, err
		}
		if g.IsKnown() {
			return g, nil
		}
	}
	return GroupUnknown, nil
}
