// Package common contains shared constants and the error taxonomy used across
// casevault components.
package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on inbound and outbound requests.
const AccessTokenHeaderName = "access_token"

// ErrorDomain is reported as the domain of structured error details.
const ErrorDomain = "casevault"
