// Package policy decides which URLs may enter the frontier and be fetched.
//
// Two independent questions are answered here:
//   - Scope: is the URL's host the site's registrable domain or one of its
//     subdomains? Out-of-scope links are recorded but never queued.
//   - Admission: has the URL already been dispatched, does its path carry a
//     non-content extension or an ignored pattern, and does robots.txt allow it?
//
// Both checks are pure predicates; nothing in this package mutates crawl state.
//
// # Robots policy availability
//
// When robots.txt could not be loaded the filter is built with a permissive
// policy and admits everything the other rules allow (fail open). A stricter
// crawler could refuse to run instead; this one prefers completing the crawl.
package policy
