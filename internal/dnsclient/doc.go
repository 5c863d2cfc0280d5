// Package dnsclient performs the read-only network lookups the domain
// lifecycle depends on: A, CNAME and TXT queries against recursive
// resolvers, and TLS probes that read whatever certificate a host serves.
//
// NXDOMAIN and NODATA are negative answers, not errors. Any other resolver
// failure is returned as a *LookupError. The Resolver is stateless and safe
// for concurrent use.
package dnsclient
