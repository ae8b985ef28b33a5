package database

import "strings"

// ConnParams holds the pieces of a parsed database connection URI.
// Fields are left empty when the URI does not carry them.
type ConnParams struct {
	Host     string
	Name     string
	User     string
	Password string
	Port     string
}

// RemoteName is the reserved database name that routes a client to the
// remote raw-data API instead of a local PostGIS session.
const RemoteName = "underpass"

// ParseURI splits a compact connection URI of the form
// [[user[:password]@]host[:port]/]dbname into its components. The legacy
// two-segment shorthand user:password/dbname (no host) is also accepted.
//
// The splitting is positional: it locates the first colon, the last colon,
// the first @ and the first / by index and cuts substrings between them.
// Plenty of existing connection strings depend on the exact behavior of
// these rules, shorthand quirks included, so they are reproduced verbatim.
// Do not rewrite this as a URL or regex parser. ParseURI never fails;
// malformed input yields partially populated fields.
func ParseURI(source string) ConnParams {
	p := ConnParams{}

	colon := strings.Index(source, ":")
	rcolon := strings.LastIndex(source, ":")
	atsign := strings.Index(source, "@")
	slash := strings.Index(source, "/")

	// Nothing but a name: a local database without user or password.
	if colon < 0 && atsign < 0 && slash < 0 {
		p.Name = source
	}
	// The database name is always after the slash.
	if slash > 0 {
		p.Name = source[slash+1:]
	}
	// The user runs from the beginning of the string to a colon or @.
	if colon > 0 {
		p.User = source[:colon]
	}
	if colon < 0 && atsign > 0 {
		p.User = source[:atsign]
	}
	// The password sits between the first colon and the @.
	if colon > 0 && atsign > 0 {
		p.Password = source[colon+1 : atsign]
	}
	// The host follows the @ and ends at the port colon, the slash, or the
	// end of the string.
	if atsign > 0 {
		switch {
		case rcolon > 0 && rcolon > atsign:
			p.Host = source[atsign+1 : rcolon]
		case slash > 0:
			p.Host = source[atsign+1 : slash]
		default:
			p.Host = source[atsign+1:]
		}
	}
	// A last colon after the @ introduces the port.
	if rcolon > 0 && rcolon > atsign {
		if slash > 0 {
			p.Port = source[rcolon+1 : slash]
		} else {
			p.Port = source[rcolon+1:]
		}
	}
	// Legacy user:password/dbname shorthand without a host.
	if colon > 0 && atsign < 0 && slash > 0 {
		p.Password = source[colon+1 : slash]
	}

	if p.Host == "" {
		p.Host = "localhost"
	}
	return p
}
