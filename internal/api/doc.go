// Package api serves the custom domain and platform subdomain REST API and
// the TLS terminator's domain guard.
//
//	@title						Domains API
//	@version					1.0
//	@description				Custom domain and platform subdomain lifecycle
//	@BasePath					/api/v1
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
package api
