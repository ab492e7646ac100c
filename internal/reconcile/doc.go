// Package reconcile derives each student's voting status from the vote log.
//
// The vote log is the source of truth; the status fields stored on students
// are a cache of it. Reconcile is pure: it reads students and votes and
// returns a Report without writing anything. Writing the derived statuses
// back is the job of services.VotingService.Sync.
//
// Matching, first success wins:
//
//  1. a vote's studentIdentifier equals the student's primary id
//  2. it equals the secondary id or the external id
//  3. it contains the external id as a whole segment delimited by
//     "_", "-", ":" or the string boundaries (fallback, flagged)
//
// Status precedence is voted > absent > pending.
package reconcile
