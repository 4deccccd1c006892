// Package jwt mints and parses the access tokens issued at the end of a
// successful login saga. One token per session; validation is strict and
// clock-skew bounded.
package jwt
