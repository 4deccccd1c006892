// Package password hashes and verifies login credentials with argon2id
// in PHC string format. Verification is constant-time over the derived
// key.
package password
