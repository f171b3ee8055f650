package mcp

import "strings"

const (
	namePrefix    = "mcp"
	nameSeparator = "__"
)

// QualifiedName builds the name the model sees for a server's tool:
// mcp__<server>__<tool>.
func QualifiedName(server, tool string) string {
	return namePrefix + nameSeparator + server + nameSeparator + tool
}

// IsQualifiedName reports whether name carries the external-server prefix.
func IsQualifiedName(name string) bool {
	return strings.HasPrefix(name, namePrefix+nameSeparator)
}

// ParseQualifiedName splits a qualified name into server and tool. The
// server is the second token; everything after it, rejoined with the
// separator, is the tool name.
func ParseQualifiedName(name string) (server, tool string, ok bool) {
	parts := strings.Split(name, nameSeparator)
	if len(parts) < 3 || parts[0] != namePrefix {
		return "", "", false
	}
	server = parts[1]
	tool = strings.Join(parts[2:], nameSeparator)
	if server == "" || tool == "" {
		return "", "", false
	}
	return server, tool, true
}
