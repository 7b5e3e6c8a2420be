// Package imapconf holds the data model shared by every discovery strategy:
// the IMAP connection Candidate, email address splitting, and the Result
// type rendered by the CLI.
package imapconf
