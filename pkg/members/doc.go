// Package members manages member accounts: sign-up, credential
// verification, profile reads and writes, and password changes.
//
// All reads and updates flow through named views in the schema registry,
// so a handler can only ever see or touch the columns its view declares.
package members
